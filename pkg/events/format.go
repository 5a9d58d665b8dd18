package events

import "fmt"

// TimeLayout is how feed lines render event times. Times are converted to UTC first.
const TimeLayout = "02 January 2006 - 03:04 PM UTC"

// Format renders e as a single human-readable feed line.
func Format(e Event) string {
	ts := e.Timestamp.UTC().Format(TimeLayout)
	switch e.Action {
	case ActionPush:
		return fmt.Sprintf("%s pushed to %s on %s", e.Author, e.ToBranch, ts)
	case ActionPullRequest:
		return fmt.Sprintf("%s submitted a pull request from %s to %s on %s", e.Author, e.FromBranch, e.ToBranch, ts)
	case ActionMerge:
		return fmt.Sprintf("%s merged branch %s to %s on %s", e.Author, e.FromBranch, e.ToBranch, ts)
	default:
		return fmt.Sprintf("Unknown action: %s by %s", e.Action, e.Author)
	}
}
