package cli

import (
	cli "github.com/lxc/incus/v6/shared/cmd"
	"github.com/spf13/cobra"
)

// Top-level command.
type cmdVeilctl struct {
	args *Args
}

func (c *cmdVeilctl) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = "veilctl"
	cmd.Short = "Manage the veild daemon"
	cmd.Long = cli.FormatSection("Description", "Manage the veild daemon and its privacy services")
	cmd.SilenceUsage = true

	// Reset.
	resetCmd := cmdReset{root: c}
	cmd.AddCommand(resetCmd.command())

	// Services.
	servicesCmd := cmdServices{root: c}
	cmd.AddCommand(servicesCmd.command())

	// Status.
	statusCmd := cmdStatus{root: c}
	cmd.AddCommand(statusCmd.command())

	// Workaround for subcommand usage errors. See: https://github.com/spf13/cobra/issues/706.
	cmd.Args = cobra.NoArgs
	cmd.Run = func(cmd *cobra.Command, _ []string) { _ = cmd.Usage() }

	return cmd
}
