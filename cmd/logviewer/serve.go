package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vilfredos/logviewer/internal/inbox"
	"github.com/vilfredos/logviewer/internal/retention"
	"github.com/vilfredos/logviewer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, inbox watcher and retention cleaner",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	cleaner := retention.New(a.store, cfg.RetentionDays)
	srv := server.New(cfg, a.store, a.service)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.InboxDir != "" {
		w := inbox.New(cfg.InboxDir, cfg.InboxPatterns, a.service)
		go func() {
			log.Printf("logviewer: watching inbox %s for %v", cfg.InboxDir, cfg.InboxPatterns)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("logviewer: inbox watcher: %v", err)
			}
		}()
	}

	go func() {
		if err := cleaner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("logviewer: retention cleaner: %v", err)
		}
	}()

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrors <- err
		}
	}()

	select {
	case <-sigCh:
		log.Println("logviewer: shutting down")
	case err := <-serverErrors:
		return err
	}

	cancel()

	if err := srv.Shutdown(); err != nil {
		log.Printf("logviewer: server shutdown: %v", err)
	}

	// Let the inbox and retention goroutines observe the cancel before
	// a.close shuts the database.
	time.Sleep(100 * time.Millisecond)

	log.Println("logviewer: shutdown complete")
	return nil
}
