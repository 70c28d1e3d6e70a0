package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-nbgen/pkg/catalog"
)

func listCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the templates in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.catalog()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFORMAT\tTITLE\tTAGS")
			for _, tpl := range c.Templates() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", tpl.Name, tpl.Format, tpl.Title, strings.Join(tpl.Tags, ","))
			}
			return w.Flush()
		},
	}
}

func (o *globalOptions) catalog() (*catalog.Catalog, error) {
	if o.templatesDir == "" {
		return catalog.Load()
	}
	return catalog.LoadFS(os.DirFS(o.templatesDir))
}
