package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/atspaeth/Neurobot/pkg/datalog"
	"github.com/atspaeth/Neurobot/pkg/drive"
	fx "github.com/atspaeth/Neurobot/pkg/framework"
	"github.com/atspaeth/Neurobot/pkg/hsr"
	"github.com/atspaeth/Neurobot/pkg/neuro"
	"github.com/atspaeth/Neurobot/pkg/session"
)

//go-build: CGO_ENABLED=0

var (
	devicePath = hsr.DefaultDevicePath
	simulate   = false
	pwmMax     = float64(drive.DefaultPWMMax)
	feedback   = float64(5)
	duration   = time.Duration(0)
	logPath    = ""
	logKind    = "csv"
)

func init() {
	flag.StringVar(&devicePath, "device", devicePath, "Memory device for the PRU shared region.")
	flag.BoolVar(&simulate, "sim", simulate, "Use a simulated coprocessor instead of hardware.")
	flag.Float64Var(&pwmMax, "p", pwmMax, "PWM duty ceiling in percent.")
	flag.Float64Var(&feedback, "k", feedback, "Proprioceptive feedback gain.")
	flag.DurationVar(&duration, "d", duration, "How long to walk, 0 for until interrupted.")
	flag.StringVar(&logPath, "log", logPath, "Datalog path, empty to disable.")
	flag.StringVar(&logKind, "log-format", logKind, "Datalog format: csv or sqlite.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	runner := fx.NewRunner().HandleSignals()

	var sess *session.Session
	if simulate {
		var sim *hsr.Sim
		sess, sim = session.OpenSim(drive.DefaultPeriod)
		runner.Go(fx.NamedRun("sim", sim))
	} else {
		var err error
		if sess, err = session.Open(devicePath); err != nil {
			log.Fatalln(err)
		}
	}
	defer sess.Close()

	conf := drive.DefaultConfig()
	conf.PWMMax = float32(pwmMax)
	if err := sess.Configure(conf); err != nil {
		log.Fatalln(err)
	}
	if err := sess.Start(); err != nil {
		log.Fatalln(err)
	}

	walker := neuro.NewWalkController(sess)
	walker.CPG.Feedback = float32(feedback)
	if logPath != "" {
		rec, err := datalog.New(logKind, logPath)
		if err != nil {
			log.Fatalln(err)
		}
		if err = rec.Begin(walker.Columns()); err != nil {
			log.Fatalln(err)
		}
		defer rec.Close()
		walker.Recorder = rec
	}

	ctx := runner.Context
	if duration > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	loop := fx.NewLoop()
	loop.Interval = conf.Period
	loop.Add(walker)
	log.Printf("Walking at dt=%s.", conf.Period)
	loop.Run(ctx)

	if err := sess.Stop(); err != nil {
		log.Fatalln(err)
	}
}
