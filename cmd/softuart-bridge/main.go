package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/softuart/pkg/bridge"
	"github.com/robotalks/softuart/pkg/env"
	fx "github.com/robotalks/softuart/pkg/framework"
	"github.com/robotalks/softuart/pkg/hal/sim"
	"github.com/robotalks/softuart/pkg/softuart"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.Default()
	if err := conf.Load(flag.CommandLine); err != nil {
		glog.Exit(err)
	}

	board := sim.NewBoard()
	board.Pace = conf.SimPace
	link, err := softuart.Initialise(conf.LinkConfig(), board.Platform())
	if err != nil {
		glog.Exitf("link setup: %v", err)
	}

	loop := fx.NewLoop()
	loop.Interval = conf.LoopInterval
	loop.AddRunnable(fx.NamedRun("board", board))

	var transports bridge.Multi
	if conf.MQTTBrokerURL != "" {
		q, err := bridge.NewQueueFromURL(conf.MQTTBrokerURL)
		if err != nil {
			glog.Exitf("mqtt: %v", err)
		}
		loop.AddRunnable(fx.NamedRun("mqtt", q))
		transports = append(transports, q)
	}
	if conf.ListenAddr != "" {
		hub := bridge.NewWebSocketHub(conf.ListenAddr)
		loop.AddRunnable(fx.NamedRun("websocket", hub))
		transports = append(transports, hub)
	}
	if len(transports) == 0 {
		glog.Exit("no transport configured, set -mqtt or -listen")
	}

	b := bridge.New(conf.ID, link, transports)
	b.StatusInterval = conf.StatusInterval
	loop.Add(b)

	glog.Infof("bridging link %s", conf.ID)
	if err := fx.NewRunner().HandleSignals().Go(fx.NamedRun("loop", loop)).Wait(); err != nil {
		glog.Exit(err)
	}
}
