package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"net"
	"net/http"

	"github.com/golang/glog"

	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/mesh"
)

var (
	tcpAddr = ":4800"
	wsAddr  = ":4801"
)

func init() {
	flag.StringVar(&tcpAddr, "tcp", tcpAddr, "Listen address for TCP peers, empty to disable.")
	flag.StringVar(&wsAddr, "ws", wsAddr, "Listen address for websocket peers, empty to disable.")
}

type wsServer struct {
	server *http.Server
}

func (s *wsServer) Run(ctx context.Context) error {
	return fx.RunWithContextCancel(ctx, func() { s.server.Close() }, func() error {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}

func main() {
	flag.Parse()

	hub := mesh.NewHub()
	runner := fx.NewRunner().HandleSignals()
	if tcpAddr != "" {
		ln, err := net.Listen("tcp", tcpAddr)
		if err != nil {
			glog.Exitf("listen %s: %v", tcpAddr, err)
		}
		glog.Infof("accepting TCP peers on %s", ln.Addr())
		runner.Go(fx.NamedRun("tcp", fx.RunnableFunc(func(ctx context.Context) error {
			return hub.ServeListener(ctx, ln)
		})))
	}
	if wsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/", hub.WebsocketHandler())
		glog.Infof("accepting websocket peers on %s", wsAddr)
		runner.Go(fx.NamedRun("ws", &wsServer{server: &http.Server{Addr: wsAddr, Handler: mux}}))
	}
	if len(runner.Runners) == 0 {
		glog.Exit("nothing to serve")
	}
	if err := runner.Wait(); err != nil {
		glog.Errorf("hub stopped: %v", err)
	}
}
