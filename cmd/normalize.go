package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gitfeed/pkg/normalize"
)

var normalizeEvent string

var normalizeCmd = &cobra.Command{
	Use:   "normalize [payload.json]",
	Short: "Normalize a saved webhook payload and print the record",
	Long:  `Reads a GitHub webhook payload from a file, or stdin when the file is "-" or omitted, and prints the event record it normalizes to.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runNormalize,
}

func init() {
	normalizeCmd.Flags().StringVarP(&normalizeEvent, "event", "e", "", "GitHub event name (push, pull_request)")
	_ = normalizeCmd.MarkFlagRequired("event")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	var (
		body []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}

	record, err := normalize.Normalize(normalizeEvent, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("normalize %s: %w", normalizeEvent, err)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}
