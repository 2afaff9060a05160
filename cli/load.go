// Package cli implements the veilctl command line client.
package cli

import (
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// Args contains the configuration for a new veilctl instance.
type Args struct {
	DefaultListFormat string
	DoHTTP            func(req *http.Request) (*http.Response, error)

	// PollInterval is the delay between two progress queries while following a reset.
	PollInterval time.Duration
}

// NewCommand returns a new cobra Command suitable for inclusion by downstreams.
func NewCommand(args *Args) *cobra.Command {
	if args.DefaultListFormat == "" {
		args.DefaultListFormat = "table"
	}

	if args.PollInterval == 0 {
		args.PollInterval = 500 * time.Millisecond
	}

	cmd := cmdVeilctl{
		args: args,
	}

	return cmd.command()
}
