package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vilfredos/logviewer/internal/parser"
)

var detectCmd = &cobra.Command{
	Use:   "detect FILE...",
	Short: "Print the detected log type of each file",
	Long: `Detect samples the leading lines of each file and prints the log type
together with the heuristic that decided it.

Examples:
  logviewer detect /var/log/xferlog
  logviewer detect access.log.1 error.log.gz`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	failed := 0

	for _, path := range args {
		t, rule, err := detectPath(path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%s\tundetermined\t%v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n", path, t, rule)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) could not be classified", failed, len(args))
	}
	return nil
}

func detectPath(path string) (parser.LogType, string, error) {
	f, err := parser.OpenLog(path)
	if err != nil {
		// The name alone may still decide.
		t, ferr := parser.DetectFile(path)
		return t, "filename", ferr
	}
	defer f.Close()

	lines, err := parser.ReadSample(f, parser.SampleSize)
	if err != nil {
		return "", "", err
	}
	return parser.DetectWithRule(lines, path)
}
