package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gitfeed/internal"
	"gitfeed/pkg/events"
)

var tailLimit int

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the most recent events from the configured store",
	Args:  cobra.NoArgs,
	RunE:  runTail,
}

var actionColors = map[events.Action]*color.Color{
	events.ActionPush:        color.New(color.FgGreen),
	events.ActionPullRequest: color.New(color.FgCyan),
	events.ActionMerge:       color.New(color.FgMagenta, color.Bold),
}

func init() {
	tailCmd.Flags().IntVarP(&tailLimit, "lines", "n", 10, "number of events to print")
}

func runTail(cmd *cobra.Command, args []string) error {
	if tailLimit < 1 {
		return fmt.Errorf("lines must be positive, got %d", tailLimit)
	}
	config, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := internal.OpenEventStore(config.Storage)
	if err != nil {
		return fmt.Errorf("open %s store: %w", config.Storage.Driver, err)
	}
	defer store.Close()

	records, err := store.ListRecent(cmd.Context(), tailLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	// Oldest first, so the newest line ends up last like tail(1).
	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		label := fmt.Sprintf("%-12s", record.Action)
		if c, ok := actionColors[record.Action]; ok {
			label = c.Sprint(label)
		}
		fmt.Fprintf(out, "%s %s\n", label, events.Format(record))
	}
	return nil
}
