package main

import (
	"flag"
	"log"
	"strings"

	"github.com/robotalks/softuart/pkg/bridge"
	"github.com/robotalks/softuart/pkg/env"
	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/msgs"
)

var topic = "#"

func init() {
	env.SetupFlags()
	flag.StringVar(&topic, "topic", topic, "Topic filter, e.g. +/status")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	conf := env.Default()
	if err := conf.Load(flag.CommandLine); err != nil {
		log.Fatalln(err)
	}
	q, err := bridge.NewQueueFromURL(conf.MQTTBrokerURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub(topic, bridge.Handler(func(topic string, payload []byte) {
		switch {
		case strings.HasSuffix(topic, "/"+bridge.TopicStatus):
			msg, err := msgs.DecodeMessage(payload)
			if err != nil {
				log.Printf("%s: bad message: %v", topic, err)
				return
			}
			if st, ok := msg.(*msgs.LinkStatus); ok {
				log.Printf("%s: rx=%s tx=%s overflow=%v %s", topic, st.RX(), st.TX(), st.Overflow, st)
			}
		default:
			log.Printf("%s: %q", topic, payload)
		}
	}))

	if err := fx.NewRunner().HandleSignals().Go(q).Wait(); err != nil {
		log.Fatalln(err)
	}
}
