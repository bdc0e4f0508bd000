package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/ygrid/ygrid/cli"
	"github.com/ygrid/ygrid/common/errors"
)

// ygrid runs a grid node or talks to one.
//
//	Commands: (see "-h" for all options)
//		start [--config <json or file>] [--grid <name>]...
//		submit [--grid <name>] [--input <file>]... -- <task>
//		status [<host:port>...]
//		nodes [--grid <name>]
//		join <grid>...
//		leave <grid>...
//	Global flags:
//		--addr [<host:port> of the local node's agent service]
//		--log_level [<error|warn|info|debug> level and above should be logged]
func main() {
	if err := cli.NewCLIClient().Exec(); err != nil {
		log.Error("Error running ygrid: ", err)
		os.Exit(int(errors.GetExitCode(err)))
	}
}
