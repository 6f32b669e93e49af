package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/atspaeth/Neurobot/pkg/control"
	"github.com/atspaeth/Neurobot/pkg/drive"
	fx "github.com/atspaeth/Neurobot/pkg/framework"
	"github.com/atspaeth/Neurobot/pkg/hsr"
	"github.com/atspaeth/Neurobot/pkg/session"
)

//go-build: CGO_ENABLED=0

var (
	devicePath = hsr.DefaultDevicePath
	simulate   = false
	pwmMax     = float64(drive.DefaultPWMMax)
	kp         = float64(control.DefaultPI.KP)
	ki         = float64(control.DefaultPI.KI)
	tau        = float64(control.DefaultPI.Tau)
	tolerance  = 0.01
	timeout    = 30 * time.Second
)

func init() {
	flag.StringVar(&devicePath, "device", devicePath, "Memory device for the PRU shared region.")
	flag.BoolVar(&simulate, "sim", simulate, "Use a simulated coprocessor instead of hardware.")
	flag.Float64Var(&pwmMax, "p", pwmMax, "PWM duty ceiling in percent.")
	flag.Float64Var(&kp, "k", kp, "Proportional gain.")
	flag.Float64Var(&ki, "i", ki, "Integral gain.")
	flag.Float64Var(&tau, "t", tau, "Integral time constant in ms.")
	flag.Float64Var(&tolerance, "tol", tolerance, "Position tolerance to consider an actuator parked.")
	flag.DurationVar(&timeout, "timeout", timeout, "Give up after this long.")
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

	zeroer := control.NewZeroer(sess)
	zeroer.PI = control.PI{KP: float32(kp), KI: float32(ki), Tau: float32(tau)}

	ctx, cancel := context.WithTimeout(runner.Context, timeout)
	defer cancel()

	// Quit once every actuator has held its target for a while.
	settled := 0
	loop := fx.NewLoop()
	loop.Interval = conf.Period
	loop.Add(zeroer)
	loop.At(fx.StagePost, fx.ControlFunc(func(cc fx.ControlContext) error {
		if zeroer.Settled(float32(tolerance)) {
			if settled++; settled > 100 {
				log.Printf("Parked at %g.", zeroer.Target)
				cancel()
			}
		} else {
			settled = 0
		}
		return nil
	}))
	loop.Run(ctx)

	if err := ctx.Err(); err == context.DeadlineExceeded {
		log.Println("Gave up before all actuators parked.")
	}
	if err := sess.Stop(); err != nil {
		log.Fatalln(err)
	}
}
