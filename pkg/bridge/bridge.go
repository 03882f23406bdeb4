// Package bridge connects a link to remote peers: received bytes are
// published, bytes from peers are transmitted, and the link status is
// reported periodically.
package bridge

import (
	"context"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/msgs"
	"github.com/robotalks/softuart/pkg/softuart"
)

// Defaults of a Bridge.
const (
	DefaultStatusInterval = time.Second
	DefaultChunkSize      = 64
)

// Bridge is the only foreground consumer of a link. It runs as
// controllers of a framework.Loop.
type Bridge struct {
	ID             string
	Link           *softuart.Link
	Transport      Transport
	StatusInterval time.Duration
	// ChunkSize bounds the bytes published per iteration.
	ChunkSize int

	loop       *fx.Loop
	lastStatus time.Time
}

// New creates a Bridge.
func New(id string, link *softuart.Link, transport Transport) *Bridge {
	return &Bridge{
		ID:             id,
		Link:           link,
		Transport:      transport,
		StatusInterval: DefaultStatusInterval,
		ChunkSize:      DefaultChunkSize,
	}
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	b.loop = loop
	loop.AddController(fx.PrLvSense, fx.ControlFunc(b.drainRX))
	loop.AddController(fx.PrLvActuate, fx.ControlFunc(b.feedTX))
	loop.AddController(fx.PrLvIdle, fx.ControlFunc(b.reportStatus))
	loop.AddRunnable(b)
}

// Name implements Named.
func (b *Bridge) Name() string {
	return "bridge:" + b.ID
}

// Run implements Runnable. It subscribes to the tx topic until ctx is
// done.
func (b *Bridge) Run(ctx context.Context) error {
	sub, err := b.Transport.Subscribe(LinkTopic(b.ID, TopicTX), b.handleTX)
	if err != nil {
		return err
	}
	defer sub.Close()
	<-ctx.Done()
	return ctx.Err()
}

func (b *Bridge) handleTX(_ string, payload []byte) {
	if len(payload) == 0 {
		return
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	b.loop.PostMessage(&msgs.Payload{Data: data})
	b.loop.TriggerNext()
}

func (b *Bridge) drainRX(cc fx.ControlContext) error {
	if b.Link.Overflow() {
		glog.Warningf("%s: receive overflow, %d frames dropped so far", b.ID, b.Link.Stats().Overflows)
		b.Link.ClearOverflow()
	}
	size := b.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	buf := make([]byte, size)
	// a cancelled read still publishes what it got.
	n, _ := b.Link.ReadContext(cc.Context(), buf)
	if n == 0 {
		return nil
	}
	glog.V(3).Infof("%s: rx %d bytes", b.ID, n)
	if n == len(buf) {
		cc.TriggerNext()
	}
	return b.Transport.Publish(LinkTopic(b.ID, TopicRX), buf[:n])
}

// feedTX queues posted payloads in order. A payload only partly accepted
// keeps its remainder at the head for the next iteration.
func (b *Bridge) feedTX(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		payload, ok := mc.CurrentMessage().(*msgs.Payload)
		if !ok {
			return
		}
		n := b.Link.Send(payload.Data)
		glog.V(3).Infof("%s: tx %d/%d bytes", b.ID, n, len(payload.Data))
		if n < len(payload.Data) {
			mc.Replace(&msgs.Payload{Data: payload.Data[n:]})
			mc.StopProcessing()
			return
		}
		mc.MessageTaken()
	}))
	return nil
}

func (b *Bridge) reportStatus(cc fx.ControlContext) error {
	interval := b.StatusInterval
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	if now := cc.Time(); now.Sub(b.lastStatus) >= interval {
		b.lastStatus = now
		return b.PublishStatus()
	}
	return nil
}

// PublishStatus publishes the link status immediately.
func (b *Bridge) PublishStatus() error {
	data, err := msgs.Encode(msgs.NewLinkStatus(b.ID, b.Link))
	if err != nil {
		return err
	}
	return b.Transport.Publish(LinkTopic(b.ID, TopicStatus), data)
}
