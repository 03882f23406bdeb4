package bridge

import (
	"io"

	fx "github.com/robotalks/softuart/pkg/framework"
)

// Handler is the callback when a message is received.
type Handler func(topic string, payload []byte)

// Transport carries link traffic to remote peers by topic.
type Transport interface {
	// Publish delivers payload to the subscribers of topic.
	Publish(topic string, payload []byte) error
	// Subscribe registers handler for messages on topic until the
	// returned Closer is closed.
	Subscribe(topic string, handler Handler) (io.Closer, error)
}

// Topic names of a link.
const (
	TopicRX     = "rx"
	TopicTX     = "tx"
	TopicStatus = "status"
)

// LinkTopic returns the topic of a link channel, e.g. "dev0/rx".
func LinkTopic(id, channel string) string {
	return id + "/" + channel
}

// Multi fans a link out to several transports.
type Multi []Transport

// Publish implements Transport. It publishes to every transport and
// aggregates failures.
func (m Multi) Publish(topic string, payload []byte) error {
	var errs fx.AggregatedError
	for _, t := range m {
		errs.Add(t.Publish(topic, payload))
	}
	return errs.Aggregate()
}

// Subscribe implements Transport.
func (m Multi) Subscribe(topic string, handler Handler) (io.Closer, error) {
	closers := make(multiCloser, 0, len(m))
	for _, t := range m {
		c, err := t.Subscribe(topic, handler)
		if err != nil {
			closers.Close()
			return nil, err
		}
		closers = append(closers, c)
	}
	return closers, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs fx.AggregatedError
	for _, c := range m {
		errs.Add(c.Close())
	}
	return errs.Aggregate()
}
