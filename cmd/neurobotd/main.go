package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"

	"golang.org/x/net/websocket"

	"github.com/atspaeth/Neurobot/pkg/binding"
	bindingws "github.com/atspaeth/Neurobot/pkg/binding/websocket"
	"github.com/atspaeth/Neurobot/pkg/drive"
	fx "github.com/atspaeth/Neurobot/pkg/framework"
	"github.com/atspaeth/Neurobot/pkg/hsr"
	"github.com/atspaeth/Neurobot/pkg/session"
	"github.com/atspaeth/Neurobot/pkg/telemetry"
)

var (
	devicePath = hsr.DefaultDevicePath
	socketPath = "/run/neurobot.sock"
	wsAddr     = ""
	simulate   = false
)

func init() {
	if val := os.Getenv("NEUROBOT_SOCKET"); val != "" {
		socketPath = val
	}
	flag.StringVar(&devicePath, "device", devicePath, "Memory device for the PRU shared region.")
	flag.StringVar(&socketPath, "socket", socketPath, "Unix socket to serve the binding on.")
	flag.StringVar(&wsAddr, "ws", wsAddr, "Optional websocket listen address, e.g. :8900.")
	flag.BoolVar(&simulate, "sim", simulate, "Use a simulated coprocessor instead of hardware.")
	telemetry.SetupFlags()
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
		log.Println("Serving a simulated coprocessor.")
	} else {
		var err error
		if sess, err = session.Open(devicePath); err != nil {
			log.Fatalln(err)
		}
	}

	server := binding.NewServer(sess)

	os.Remove(socketPath) // stale socket from an unclean shutdown
	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		log.Fatalln(err)
	}
	log.Printf("Binding on %s", socketPath)
	runner.Go(fx.NamedRun("binding", fx.RunnableFunc(func(ctx context.Context) error {
		return server.Serve(ctx, lis)
	})))

	if wsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/io", websocket.Handler(func(conn *websocket.Conn) {
			server.ServeConn(runner.Context, bindingws.New(conn))
		}))
		httpServer := &http.Server{Addr: wsAddr, Handler: mux}
		log.Printf("Websocket binding on %s/io", wsAddr)
		runner.Go(fx.NamedRun("websocket", fx.RunnableFunc(func(ctx context.Context) error {
			return fx.RunWithContextCloser(ctx, httpServer, httpServer.ListenAndServe)
		})))
	}

	if conf := telemetry.NewConfig(); conf.URL != "" {
		pub, err := conf.NewPublisher(sess)
		if err != nil {
			log.Fatalln(err)
		}
		if err = pub.Connect(); err != nil {
			log.Printf("Telemetry unavailable: %v", err)
		} else {
			defer pub.Close()
			runner.Go(fx.NamedRun("telemetry", pub))
		}
	}

	defer sess.Close()
	if err := runner.Wait(); err != nil {
		log.Fatalln(err)
	}
}
