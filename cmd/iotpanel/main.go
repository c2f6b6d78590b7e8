// iotpanel is the terminal dashboard for the iotdash REST backend.
//
// The watch command renders every catalogued device as a panel and keeps
// the panels live by polling the backend; status and send are one-shot
// helpers for scripts and troubleshooting.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version information - set at build time via ldflags
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "iotpanel",
		Usage:   "terminal dashboard for iotdash devices",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration file (defaults are used when empty)",
				EnvVars: []string{"IOTDASH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "REST API base URL, e.g. http://localhost:5000/api",
				EnvVars: []string{"IOTPANEL_API_URL"},
			},
			&cli.StringFlag{
				Name:    "namespace",
				Usage:   "device topic namespace",
				EnvVars: []string{"IOTPANEL_NAMESPACE"},
			},
		},
		Action: watchCommand,
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "open the interactive dashboard",
				Action: watchCommand,
			},
			{
				Name:   "status",
				Usage:  "print backend health and the current device snapshot",
				Action: statusCommand,
			},
			{
				Name:      "send",
				Usage:     "send one command to a device",
				ArgsUsage: "<device> <command>",
				Action:    sendCommand,
			},
		},
	}
}
