// Package msgs defines the messages exchanged by link bridges and their
// monitors.
package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/softuart"
)

// TypeID Groups
const (
	GroupLink uint32 = 0x00010000
)

// TypeIDs
const (
	PayloadTypeID    uint32 = GroupLink | 0x0001
	LinkStatusTypeID uint32 = TypeIDKindEvent | GroupLink | 0x0002
)

// MessageTypes are predefined mapping of type ID to messages.
var MessageTypes = map[uint32]SerializableMessage{
	PayloadTypeID:    (*Payload)(nil),
	LinkStatusTypeID: (*LinkStatus)(nil),
}

// Payload carries bytes to transmit on a link.
type Payload struct {
	Data []byte `protobuf:"bytes,1,opt,name=data,proto3" json:"data,omitempty"`
}

// NewMessage implements Message.
func (m *Payload) NewMessage() fx.Message { return &Payload{} }

// TypeID implements SerializableMessage.
func (m *Payload) TypeID() uint32 { return PayloadTypeID }

// Serializable implements SerializableMessage.
func (m *Payload) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Payload) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Payload) Reset() { *m = Payload{} }

// String implements proto.Message.
func (m *Payload) String() string { return proto.CompactTextString(m) }

// LinkStatus is an Event message reporting the state of a link.
type LinkStatus struct {
	Id            string `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	BitsPerSecond uint32 `protobuf:"varint,2,opt,name=bits_per_second,proto3" json:"bits_per_second,omitempty"`
	RxState       uint32 `protobuf:"varint,3,opt,name=rx_state,proto3" json:"rx_state,omitempty"`
	TxState       uint32 `protobuf:"varint,4,opt,name=tx_state,proto3" json:"tx_state,omitempty"`
	Overflow      bool   `protobuf:"varint,5,opt,name=overflow,proto3" json:"overflow,omitempty"`
	RxPending     uint32 `protobuf:"varint,6,opt,name=rx_pending,proto3" json:"rx_pending,omitempty"`
	TxPending     uint32 `protobuf:"varint,7,opt,name=tx_pending,proto3" json:"tx_pending,omitempty"`
	Ticks         uint64 `protobuf:"varint,8,opt,name=ticks,proto3" json:"ticks,omitempty"`
	Received      uint64 `protobuf:"varint,9,opt,name=received,proto3" json:"received,omitempty"`
	FramingErrors uint64 `protobuf:"varint,10,opt,name=framing_errors,proto3" json:"framing_errors,omitempty"`
	Overflows     uint64 `protobuf:"varint,11,opt,name=overflows,proto3" json:"overflows,omitempty"`
	Sent          uint64 `protobuf:"varint,12,opt,name=sent,proto3" json:"sent,omitempty"`
	TxLockRetries uint64 `protobuf:"varint,13,opt,name=tx_lock_retries,proto3" json:"tx_lock_retries,omitempty"`
}

// NewLinkStatus captures the status and counters of a link.
func NewLinkStatus(id string, l *softuart.Link) *LinkStatus {
	st, stats := l.Status(), l.Stats()
	return &LinkStatus{
		Id:            id,
		BitsPerSecond: l.Timing().Speed.BitsPerSecond(),
		RxState:       uint32(st.RX),
		TxState:       uint32(st.TX),
		Overflow:      st.Overflow,
		RxPending:     uint32(st.RxPending),
		TxPending:     uint32(st.TxPending),
		Ticks:         stats.Ticks,
		Received:      stats.Received,
		FramingErrors: stats.FramingErrors,
		Overflows:     stats.Overflows,
		Sent:          stats.Sent,
		TxLockRetries: stats.TxLockRetries,
	}
}

// RX returns the receive engine state.
func (m *LinkStatus) RX() softuart.RxState { return softuart.RxState(m.RxState) }

// TX returns the transmit engine state.
func (m *LinkStatus) TX() softuart.TxState { return softuart.TxState(m.TxState) }

// NewMessage implements Message.
func (m *LinkStatus) NewMessage() fx.Message { return &LinkStatus{} }

// TypeID implements SerializableMessage.
func (m *LinkStatus) TypeID() uint32 { return LinkStatusTypeID }

// Serializable implements SerializableMessage.
func (m *LinkStatus) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *LinkStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *LinkStatus) Reset() { *m = LinkStatus{} }

// String implements proto.Message.
func (m *LinkStatus) String() string { return proto.CompactTextString(m) }
