// Package main is used for the veilctl command line client.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/veilnet/veild/cli"
	"github.com/veilnet/veild/internal/config"
)

func main() {
	err := run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	socketPath := config.Default().SocketPath()
	if os.Getenv("VEILD_SOCKET") != "" {
		socketPath = os.Getenv("VEILD_SOCKET")
	}

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _ string, _ string) (net.Conn, error) {
				d := &net.Dialer{}

				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}

	args := &cli.Args{
		DoHTTP: client.Do,
	}

	cmd := cli.NewCommand(args)
	cmd.SilenceErrors = true
	cmd.PersistentFlags().StringVar(&socketPath, "socket", socketPath, "Path to the veild API socket``")
	cmd.CompletionOptions = cobra.CompletionOptions{HiddenDefaultCmd: true}

	return cmd.Execute()
}
