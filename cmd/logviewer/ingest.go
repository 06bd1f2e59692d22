package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Parse log files and store their records",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	out := cmd.OutOrStdout()
	failed := 0

	for _, path := range args {
		rep, err := a.service.IngestFile(ctx, path, "")
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(out, "%s\tfailed\t%v\n", path, err)
		case rep.Duplicate:
			fmt.Fprintf(out, "%s\tduplicate\n", path)
		default:
			fmt.Fprintf(out, "%s\t%s\t%d records\t%d skipped\n", path, rep.Type, rep.Records, rep.Skipped)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(args))
	}
	return nil
}
