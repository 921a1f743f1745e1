package main

import (
	"github.com/robotalks/meshota/pkg/cli/sh"
	env "github.com/robotalks/meshota/pkg/node/connector"

	_ "github.com/robotalks/meshota/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
