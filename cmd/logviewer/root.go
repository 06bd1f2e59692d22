package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/vilfredos/logviewer/internal/config"
	"github.com/vilfredos/logviewer/internal/db"
	"github.com/vilfredos/logviewer/internal/geo"
	"github.com/vilfredos/logviewer/internal/ingest"
	"github.com/vilfredos/logviewer/internal/parser"
	"github.com/vilfredos/logviewer/internal/store"
)

var cfgFile string

// rootCmd serves when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "logviewer",
	Short: "Apache and FTP log ingestion and browsing",
	Long: `logviewer detects and parses Apache access/error logs, vsftpd event logs
and xferlog transfer logs, stores the records in SQLite and serves them
over a JSON API.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (overrides LOGVIEWER_CONFIG)")
}

// loadConfig reads configuration, honoring --config.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		os.Setenv("LOGVIEWER_CONFIG", cfgFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// app bundles the stored-state components shared by serve and ingest.
type app struct {
	store   *store.Store
	service *ingest.Service
	close   func()
}

func openApp(cfg *config.Config) (*app, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	lookup := geo.OpenOptional(cfg.GeoIPPath)
	var locator store.Locator
	if lookup != nil {
		locator = lookup
	}

	st := store.New(database, locator)
	svc := ingest.NewService(st, parser.NewParser(cfg.LogType), cfg.SkipDuplicates)
	log.Printf("logviewer: database %s, log type %s", cfg.DBPath, cfg.ParsedLogType())

	return &app{
		store:   st,
		service: svc,
		close: func() {
			lookup.Close()
			database.Close()
		},
	}, nil
}
