// Package all registers all shell commands.
package all

import (
	_ "github.com/robotalks/meshota/pkg/cli/cmds/otap"
)
