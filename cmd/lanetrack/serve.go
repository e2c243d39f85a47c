package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/api"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/spf13/cobra"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var (
		listen    string
		mediaDirs []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API and the /debug/ admin pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, g, listen, mediaDirs)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "listen address")
	cmd.Flags().StringSliceVar(&mediaDirs, "media", []string{"."}, "directories clips may be read from (repeatable)")
	return cmd
}

func serve(ctx context.Context, g *globalOptions, listen string, mediaDirs []string) error {
	for _, dir := range mediaDirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("media directory %q is not a directory", dir)
		}
	}
	tuning, err := g.loadTuning()
	if err != nil {
		return err
	}

	database, err := db.NewDB(g.dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	store := db.NewAnalysisRunStore(database.DB)
	if n, err := store.FailInterruptedRuns(time.Now(), "interrupted by server restart"); err != nil {
		return err
	} else if n > 0 {
		log.Printf("marked %d interrupted runs as failed", n)
	}

	engine := analysis.NewEngine(tuning)
	defer engine.Close()
	manager := analysis.NewRunManager(engine, store, openVideo, nil)
	defer manager.Close()

	mux := api.NewServer(engine, manager, store, mediaDirs).ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("serving on %s (media: %v, db: %s)", listen, mediaDirs, database.Path())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("HTTP server stopped")
	return nil
}
