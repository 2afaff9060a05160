package cli

import (
	"context"
	"net/http"
	"sort"

	cli "github.com/lxc/incus/v6/shared/cmd"
	"github.com/spf13/cobra"

	"github.com/veilnet/veild/api"
)

// Services.
type cmdServices struct {
	root *cmdVeilctl

	flagFormat string
}

func (c *cmdServices) command() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Use = cli.Usage("services")
	cmd.Aliases = []string{"service"}
	cmd.Short = "List the managed services"
	cmd.Long = cli.FormatSection("Description", "List the managed services and their last known status")
	cmd.Flags().StringVarP(&c.flagFormat, "format", "f", c.root.args.DefaultListFormat, "Format (csv|json|table|yaml|compact|markdown), use suffix \",noheader\" to disable headers and \",header\" to enable it if missing, e.g. csv,header``")

	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		return cli.ValidateFlagFormatForListOutput(cmd.Flag("format").Value.String())
	}

	cmd.RunE = c.run

	return cmd
}

func (c *cmdServices) run(cmd *cobra.Command, args []string) error {
	// Quick checks.
	exit, err := cli.CheckArgs(cmd, args, 0, 0)
	if exit {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Get the list.
	resp, _, err := doQuery(ctx, c.root.args.DoHTTP, http.MethodGet, "/1.0/services", nil)
	if err != nil {
		return err
	}

	entries, err := resp.MetadataAsStringSlice()
	if err != nil {
		return err
	}

	// Get each service.
	svcs := make([]api.Service, 0, len(entries))
	data := [][]string{}

	for _, entry := range entries {
		resp, _, err := doQuery(ctx, c.root.args.DoHTTP, http.MethodGet, entry, nil)
		if err != nil {
			return err
		}

		svc := api.Service{}

		err = resp.MetadataAsStruct(&svc)
		if err != nil {
			return err
		}

		svcs = append(svcs, svc)
		data = append(data, []string{svc.Name, svc.Unit, svc.Status})
	}

	sort.Sort(cli.SortColumnsNaturally(data))

	header := []string{
		"NAME",
		"UNIT",
		"STATUS",
	}

	return cli.RenderTable(cmd.OutOrStdout(), c.flagFormat, header, data, svcs)
}
