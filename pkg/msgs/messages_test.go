package msgs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/softuart/pkg/bitclock"
	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/hal/sim"
	"github.com/robotalks/softuart/pkg/softuart"
)

type plainMsg struct{}

func (m *plainMsg) NewMessage() fx.Message { return &plainMsg{} }

func TestLinkStatusEnvelope(t *testing.T) {
	board := sim.NewBoard()
	link, err := softuart.Initialise(softuart.Config{
		Speed:        bitclock.Speed9600,
		CPUFrequency: 16000000,
	}, board.Platform())
	require.NoError(t, err)
	require.True(t, link.PutChar('x'))
	require.True(t, board.StepUntil(10000, func() bool { return link.Status().TX != softuart.TxIdle }))

	status := NewLinkStatus("dev0", link)
	require.Equal(t, uint32(9600), status.BitsPerSecond)
	require.Equal(t, softuart.RxArmedCountdown, status.RX())
	require.NotEqual(t, softuart.TxIdle, status.TX())
	require.NotZero(t, status.Ticks)

	data, err := Encode(status)
	require.NoError(t, err)
	typed, err := DecodeTyped(data)
	require.NoError(t, err)
	require.True(t, typed.IsEvent())
	msg, err := typed.Decode()
	require.NoError(t, err)
	decoded, ok := msg.(*LinkStatus)
	require.True(t, ok)
	require.Equal(t, "dev0", decoded.Id)
	require.Equal(t, status.TxState, decoded.TxState)
	require.Equal(t, status.Ticks, decoded.Ticks)
}

func TestPayloadIsCommand(t *testing.T) {
	typed, err := TypedFrom(&Payload{Data: []byte("hi")})
	require.NoError(t, err)
	require.False(t, typed.IsEvent())
	msg, err := typed.Decode()
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), msg.(*Payload).Data)
}

func TestDecodeErrors(t *testing.T) {
	_, err := TypedFrom(&plainMsg{})
	require.Equal(t, ErrNotSerializable, err)

	data, err := (&Typed{TypeId: 0x1234}).Encode()
	require.NoError(t, err)
	_, err = DecodeMessage(data)
	require.Equal(t, &ErrUnknownType{TypeID: 0x1234}, err)

	_, err = DecodeTyped([]byte{0xff})
	require.Error(t, err)
}
