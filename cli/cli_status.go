package cli

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	cli "github.com/lxc/incus/v6/shared/cmd"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/veilnet/veild/api"
)

// Status.
type cmdStatus struct {
	root *cmdVeilctl

	flagFormat string
}

func (c *cmdStatus) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = cli.Usage("status")
	cmd.Short = "Show the system status"
	cmd.Long = cli.FormatSection("Description", "Show the installed components and the last known status of the services")
	cmd.Flags().StringVarP(&c.flagFormat, "format", "f", "", "Format (yaml)``")

	cmd.RunE = c.run

	return cmd
}

func (c *cmdStatus) run(cmd *cobra.Command, args []string) error {
	// Quick checks.
	exit, err := cli.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resp, _, err := doQuery(ctx, c.root.args.DoHTTP, http.MethodGet, "/1.0/system/status", nil)
	if err != nil {
		return err
	}

	status := api.SystemStatus{}

	err = resp.MetadataAsStruct(&status)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if c.flagFormat == "yaml" {
		data, err := yaml.Marshal(status)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprint(out, string(data))

		return nil
	} else if c.flagFormat != "" {
		return fmt.Errorf("invalid format %q", c.flagFormat)
	}

	installed := "no"
	if status.ModulesInstalled {
		installed = "yes"
	}

	_, _ = fmt.Fprintf(out, "Version: %s\n", status.Version)
	_, _ = fmt.Fprintf(out, "Installed: %s\n", installed)
	_, _ = fmt.Fprintf(out, "Install root: %s\n", status.InstallRoot)

	if !status.UpdatedAt.IsZero() {
		_, _ = fmt.Fprintf(out, "Updated: %s\n", status.UpdatedAt.Local().Format(dateLayoutSecond))
	}

	_, _ = fmt.Fprintln(out, "Components:")

	for _, comp := range status.Components {
		installedVersion := comp.InstalledVersion
		if installedVersion == "" {
			installedVersion = "-"
		}

		_, _ = fmt.Fprintf(out, "  %s: %s (bundled %s)\n", comp.Name, installedVersion, comp.BundledVersion)
	}

	_, _ = fmt.Fprintln(out, "Services:")

	names := make([]string, 0, len(status.Services))
	for name := range status.Services {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		_, _ = fmt.Fprintf(out, "  %s: %s\n", name, status.Services[name])
	}

	return nil
}
