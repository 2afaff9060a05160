package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/lxc/incus/v6/shared/ask"
	cli "github.com/lxc/incus/v6/shared/cmd"
	"github.com/spf13/cobra"

	"github.com/veilnet/veild/api"
)

// ErrConfirmationRequired is returned when a reset is requested without a terminal to confirm it on.
var ErrConfirmationRequired = errors.New("confirmation required, use --yes to reset without a terminal")

// Factory reset.
type cmdReset struct {
	root *cmdVeilctl

	flagYes      bool
	flagDetach   bool
	flagLanguage string
}

func (c *cmdReset) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = cli.Usage("reset")
	cmd.Short = "Factory reset the system"
	cmd.Long = cli.FormatSection("Description", `Factory reset the system

Stops the privacy services, reinstalls the bundled components and erases all settings.
The registration code is kept on systems that support it.`)
	cmd.Example = cli.FormatSection("", `veilctl reset --yes --detach
    Start a factory reset without confirmation and return immediately.`)

	cmd.Flags().BoolVarP(&c.flagYes, "yes", "y", false, "Don't ask for confirmation")
	cmd.Flags().BoolVar(&c.flagDetach, "detach", false, "Don't wait for the reset to complete")
	cmd.Flags().StringVar(&c.flagLanguage, "language", "", "Language of the progress messages``")

	cmd.RunE = c.run

	return cmd
}

func (c *cmdReset) run(cmd *cobra.Command, args []string) error {
	// Quick checks.
	exit, err := cli.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	// Ask for confirmation.
	if !c.flagYes {
		if !isTerminal(cmd.InOrStdin()) {
			return ErrConfirmationRequired
		}

		asker := ask.NewAsker(bufio.NewReader(cmd.InOrStdin()))

		confirm, err := asker.AskBool("Are you sure you want to factory reset the system? (yes/no) [default=no]: ", "no")
		if err != nil {
			return err
		}

		if !confirm {
			return nil
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Start the reset.
	resp, location, err := doQuery(ctx, c.root.args.DoHTTP, http.MethodPost, "/1.0/system/:factory-reset", api.SystemReset{Language: c.flagLanguage})
	if err != nil {
		return err
	}

	state := api.SystemResetState{}

	err = resp.MetadataAsStruct(&state)
	if err != nil {
		return err
	}

	if location == "" {
		location = state.Operation
	}

	if c.flagDetach {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Factory reset %s started\n", state.ID)

		return nil
	}

	return c.follow(ctx, cmd, location)
}

// follow prints the progress of the reset until it completes. A first interrupt
// asks the daemon to give up waiting for the services to stop.
func (c *cmdReset) follow(ctx context.Context, cmd *cobra.Command, location string) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pollCtx := context.WithoutCancel(ctx)
	interrupted := false
	lastMessage := ""

	ticker := time.NewTicker(c.root.args.PollInterval)
	defer ticker.Stop()

	for {
		resp, _, err := doQuery(pollCtx, c.root.args.DoHTTP, http.MethodGet, location, nil)
		if err != nil {
			return err
		}

		op := api.Operation{}

		err = resp.MetadataAsStruct(&op)
		if err != nil {
			return err
		}

		if op.Message != "" && op.Message != lastMessage {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), op.Message)
			lastMessage = op.Message
		}

		if op.Done {
			break
		}

		select {
		case <-ticker.C:
		case <-sigCtx.Done():
			if !interrupted {
				interrupted = true

				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Interrupting the factory reset")

				_, _, err := doQuery(pollCtx, c.root.args.DoHTTP, http.MethodDelete, "/1.0/system/:factory-reset", nil)
				if err != nil {
					return err
				}
			}

			<-ticker.C
		}
	}

	// Release the operation.
	_, _, _ = doQuery(pollCtx, c.root.args.DoHTTP, http.MethodDelete, location, nil)

	// Report the outcome.
	resp, _, err := doQuery(pollCtx, c.root.args.DoHTTP, http.MethodGet, "/1.0/system/:factory-reset", nil)
	if err != nil {
		return err
	}

	state := api.SystemResetState{}

	err = resp.MetadataAsStruct(&state)
	if err != nil {
		return err
	}

	if state.Error != "" {
		return fmt.Errorf("factory reset %s %s: %s", path.Base(location), state.Phase, state.Error)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Factory reset completed in %s\n", time.Since(state.StartedAt).Round(time.Second))

	return nil
}
