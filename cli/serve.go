package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/shift-engine/api"
	"github.com/warp/shift-engine/core"
)

var (
	serveAddr         string
	schedulerInterval time.Duration
	schedulerTZ       string
	noScheduler       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Starts the REST API with the background job scheduler. On SIGINT or
SIGTERM the server stops accepting connections, waits up to 30 seconds
for in-flight requests, stops the scheduler, and closes the database.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr",
		envOr("SHIFT_ADDR", ":8080"), "listen address")
	serveCmd.Flags().DurationVar(&schedulerInterval, "scheduler-interval",
		15*time.Minute, "background job check interval")
	serveCmd.Flags().StringVar(&schedulerTZ, "scheduler-tz",
		envOr("SHIFT_SCHEDULER_TZ", ""),
		`time zone defining "today" for scheduled jobs (default UTC)`)
	serveCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false,
		"disable the background job scheduler (manual /v1/jobs/run still works)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	handler := api.NewHandler(store, engineConfig())

	scheduler := api.NewJobScheduler(store, handler)
	scheduler.CheckInterval = schedulerInterval
	scheduler.Enabled = !noScheduler
	if schedulerTZ != "" {
		loc, err := core.LoadLocation(schedulerTZ)
		if err != nil {
			return fmt.Errorf("scheduler time zone %q: %w", schedulerTZ, err)
		}
		scheduler.Location = loc
	}
	handler.Scheduler = scheduler

	server := &http.Server{
		Addr:         serveAddr,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start()
	defer scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 shiftd listening on %s", serveAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}
