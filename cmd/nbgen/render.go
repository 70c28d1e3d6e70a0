package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-nbgen/pkg/client"
	"github.com/goliatone/go-nbgen/pkg/render"
)

type renderOptions struct {
	uuids            []string
	token            string
	requestFile      string
	output           string
	baseURL          string
	assetsURL        string
	sanitizeMarkdown bool
	strict           bool
	prompt           bool
}

func renderCmd(opts *globalOptions) *cobra.Command {
	ro := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a catalog template to notebook JSON",
		Long: `Render a catalog template for a set of dataset uuids.

The group token defaults to $NBGEN_GROUP_TOKEN. Extra template variables can
be supplied as a JSON object with --request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts, ro, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVar(&ro.uuids, "uuids", nil, "dataset uuids (comma separated or repeated)")
	flags.StringVar(&ro.token, "token", "", "group token used to query the search API")
	flags.StringVar(&ro.requestFile, "request", "", "JSON file with extra template variables")
	flags.StringVarP(&ro.output, "output", "o", "", "output file (stdout if empty)")
	flags.StringVar(&ro.baseURL, "base-url", client.DefaultBaseURL, "search API base URL")
	flags.StringVar(&ro.assetsURL, "assets-url", client.DefaultAssetsURL, "assets base URL used for file links")
	flags.BoolVar(&ro.sanitizeMarkdown, "sanitize-markdown", false, "strip unsafe HTML from rendered markdown cells")
	flags.BoolVar(&ro.strict, "strict", false, "fail on unknown template items instead of skipping them")
	flags.BoolVar(&ro.prompt, "prompt", false, "prompt for the group token when none is set")

	return cmd
}

func runRender(cmd *cobra.Command, opts *globalOptions, ro *renderOptions, name string) error {
	logger := opts.logger()

	c, err := opts.catalog()
	if err != nil {
		return err
	}
	tpl, ok := c.Get(name)
	if !ok {
		return fmt.Errorf("template %q not found (see nbgen list)", name)
	}

	token := strings.TrimSpace(ro.token)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("NBGEN_GROUP_TOKEN"))
	}
	if token == "" && ro.prompt && tpl.Format != render.FormatPython {
		token, err = promptToken(cmd.Context())
		if err != nil {
			return err
		}
	}

	extra, err := readExtra(ro.requestFile)
	if err != nil {
		return err
	}

	req, err := c.Request(name, ro.uuids, token, extra)
	if err != nil {
		return err
	}

	options := []render.Option{
		render.WithLogger(logger),
		render.WithStrictItems(ro.strict),
		render.WithClientFactory(client.Factory(
			client.WithBaseURL(ro.baseURL),
			client.WithAssetsURL(ro.assetsURL),
		)),
	}
	if ro.sanitizeMarkdown {
		options = append(options, render.WithSanitizedMarkdown())
	}

	r, err := c.Renderer(name, options...)
	if err != nil {
		return err
	}
	out, err := r.Render(cmd.Context(), req)
	if err != nil {
		if errors.Is(err, render.ErrMissingField) && token == "" {
			return fmt.Errorf("%w (set --token, $NBGEN_GROUP_TOKEN, or --prompt)", err)
		}
		return err
	}

	logger.Info("notebook rendered",
		slog.String("template", name),
		slog.String("format", string(tpl.Format)),
		slog.Int("uuids", len(ro.uuids)),
		slog.Int("bytes", len(out)),
	)

	if ro.output == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return err
	}
	if err := os.WriteFile(ro.output, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Notebook written to %s\n", ro.output)
	return nil
}

func readExtra(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request file: %w", err)
	}
	var extra map[string]any
	if err := json.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("decode request file %s: %w", path, err)
	}
	return extra, nil
}
