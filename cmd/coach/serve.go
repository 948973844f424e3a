package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lunar-stra95/coach-coral-mistral/internal/agent"
	"github.com/lunar-stra95/coach-coral-mistral/internal/frontend"
	"github.com/lunar-stra95/coach-coral-mistral/internal/metrics"
	"github.com/lunar-stra95/coach-coral-mistral/internal/stats"
	"github.com/lunar-stra95/coach-coral-mistral/internal/ws"
)

func serveCmd() *cobra.Command {
	var (
		port int
		mock bool
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket server and browser UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, port, mock, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override server port")
	cmd.Flags().BoolVar(&mock, "mock", false, "Score answers with the built-in mock provider")
	cmd.Flags().BoolVar(&dev, "dev", false, "Serve the frontend from the filesystem")
	return cmd
}

func runServe(ctx context.Context, port int, mock, dev bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	rec := metrics.NewRecorder()
	c, err := buildCore(ctx, cfg, mock, rec)
	if err != nil {
		return err
	}

	broadcaster := ws.NewBroadcaster(c.store, cfg.Broadcast.Throttle, cfg.Broadcast.SnapshotInterval, cfg.Broadcast.MaxConnections)
	defer broadcaster.Stop()
	broadcaster.SetPrivacyFilter(c.privacy)
	broadcaster.SetClientGauge(rec)

	c.master.Register(agent.NewFrontend(broadcaster))
	c.coach.SetNotifier(broadcaster)
	c.health.OnChange(broadcaster.PublishHealth)

	tracker, events := stats.NewTracker()
	c.coach.SetEvents(events)
	go tracker.Run(ctx)
	go c.coach.RunSweeper(ctx)

	frontendDir := ""
	embedded := frontend.Handler()
	if dev {
		cwd, _ := os.Getwd()
		frontendDir = filepath.Join(cwd, "internal", "frontend", "static")
		embedded = nil
	}

	server := ws.NewServer(cfg, c.coach, broadcaster, frontendDir, dev, embedded)
	server.SetStatsTracker(tracker)
	server.SetHealth(c.health)
	server.SetMetricsHandler(rec.Handler())

	if mock {
		log.Println("Starting in mock mode")
	}
	if err := ws.Serve(ctx, cfg.Server.Host, cfg.Server.Port, server.Handler()); err != nil {
		return err
	}
	log.Println("Shut down cleanly")
	return nil
}
