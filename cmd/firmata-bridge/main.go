package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/firmata.go/pkg/bridge"
	"github.com/robotalks/firmata.go/pkg/env"
	"github.com/robotalks/firmata.go/pkg/firmata"
	fx "github.com/robotalks/firmata.go/pkg/framework"
	"github.com/robotalks/firmata.go/pkg/mqtt"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	conf := env.NewConfig()
	id, err := conf.ID()
	if err != nil {
		glog.Exitf("board id: %v", err)
	}
	opts, prefix, qos, err := mqtt.ClientOptionsFromURL(conf.MQTTURL)
	if err != nil {
		glog.Exitf("mqtt: %v", err)
	}
	bridge.SetWill(opts, prefix, id)
	q := mqtt.NewQueue(opts, prefix)
	q.QoS = qos

	runner := fx.NewRunner().HandleSignals()
	if err := q.Connect(runner.Context); err != nil {
		glog.Exitf("mqtt connect %s: %v", conf.MQTTURL, err)
	}
	defer q.Close()

	br := bridge.New(q, id)
	populate := conf.Populate
	conf.Populate = false
	e := conf.MustConnect(runner.Context, firmata.WithMessageHandler(br))
	defer e.Close()
	br.Attach(e.Client)
	if populate {
		if err := e.Client.Populate(runner.Context); err != nil {
			glog.Exitf("populate: %v", err)
		}
	}

	runner.Go(fx.NamedRun("client", e.Client), fx.NamedRun("bridge", br))
	if err := runner.Wait(); err != nil {
		glog.Errorf("%v", err)
	}
}
