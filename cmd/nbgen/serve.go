package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-nbgen/pkg/client"
	"github.com/goliatone/go-nbgen/pkg/render"
	"github.com/goliatone/go-nbgen/pkg/server"
)

type serveOptions struct {
	addr             string
	baseURL          string
	assetsURL        string
	shutdownGrace    time.Duration
	sanitizeMarkdown bool
	metrics          bool
}

func serveCmd(opts *globalOptions) *cobra.Command {
	so := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the template catalog over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts, so)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&so.addr, "addr", ":8080", "listen address")
	flags.StringVar(&so.baseURL, "base-url", client.DefaultBaseURL, "search API base URL")
	flags.StringVar(&so.assetsURL, "assets-url", client.DefaultAssetsURL, "assets base URL used for file links")
	flags.DurationVar(&so.shutdownGrace, "shutdown-grace", 5*time.Second, "graceful shutdown timeout")
	flags.BoolVar(&so.sanitizeMarkdown, "sanitize-markdown", false, "strip unsafe HTML from rendered markdown cells")
	flags.BoolVar(&so.metrics, "metrics", true, "expose prometheus metrics on /metrics")

	return cmd
}

func runServe(ctx context.Context, opts *globalOptions, so *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.logger()

	c, err := opts.catalog()
	if err != nil {
		return err
	}

	renderOptions := []render.Option{
		render.WithClientFactory(client.Factory(
			client.WithBaseURL(so.baseURL),
			client.WithAssetsURL(so.assetsURL),
		)),
	}
	if so.sanitizeMarkdown {
		renderOptions = append(renderOptions, render.WithSanitizedMarkdown())
	}
	serverOptions := []server.Option{
		server.WithLogger(logger),
		server.WithRenderOptions(renderOptions...),
	}
	if so.metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		serverOptions = append(serverOptions, server.WithMetrics(reg))
	}

	srv, err := server.New(c, serverOptions...)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              so.addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("listening", slog.String("addr", so.addr), slog.Int("templates", len(c.List())))

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), so.shutdownGrace)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
