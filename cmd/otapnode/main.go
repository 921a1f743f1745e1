package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/golang/glog"

	fx "github.com/robotalks/meshota/pkg/framework"
	"github.com/robotalks/meshota/pkg/node"
)

func init() {
	node.SetupFlags()
}

func main() {
	flag.Parse()

	conf, err := node.NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	n := conf.MustNewNode()
	defer n.Close()
	glog.Infof("node %s role=%s listening on %v", conf.Address, conf.Role, n.Addr())
	if err := fx.NewRunner().HandleSignals().Go(n).Wait(); err != nil {
		glog.Errorf("node stopped: %v", err)
	}
}
