package main

import (
	"sitepilot/internal/logging"
	"sitepilot/internal/model"
	"sitepilot/internal/server"
	"sitepilot/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveAddr string

// serveCmd exposes pages over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve pages and actions over HTTP",
	Long: `Serves the page model over HTTP.

  GET /                          redirects to the domain the browser is on
  GET /example.com/login         describes the page as JSON
  GET /example.com/login?fill_email=me@example.com&click_sign_in
                                 performs the actions in order, then
                                 redirects to wherever the browser ended up`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:5000", "Address to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	// Nobody is at the terminal while serving.
	a.rt.Prompt = nil
	srv := server.New(a.rt, logging.For(logger, logging.CategoryServer))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, serveAddr)
	})

	watcher, err := store.NewWatcher(a.store, logging.For(logger, logging.CategoryStore))
	if err != nil {
		logger.Warn("Site files will not be watched", zap.Error(err))
	} else {
		if err := watcher.Start(gctx); err != nil {
			return err
		}
		g.Go(func() error {
			defer watcher.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case path := <-watcher.Changes():
					// Pages are loaded per request, so edits apply on the next one.
					logger.Info("Site file changed", zap.String("path", path))
				}
			}
		})
	}

	if _, err := model.Auto(gctx, a.rt); err != nil {
		logger.Warn("Unable to identify the start page", zap.Error(err))
	}
	return g.Wait()
}
