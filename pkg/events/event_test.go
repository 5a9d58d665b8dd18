package events

import (
	"errors"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	valid := Event{Author: "alice", Action: ActionPush, ToBranch: "main"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}

	noAuthor := Event{Author: "  ", Action: ActionPush}
	if err := noAuthor.Validate(); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for empty author, got %v", err)
	}

	badAction := Event{Author: "alice", Action: "DEPLOY"}
	if err := badAction.Validate(); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent for unknown action, got %v", err)
	}
}

func TestFormat(t *testing.T) {
	ts := time.Date(2024, time.April, 1, 21, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))

	cases := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "push",
			event: Event{Author: "alice", Action: ActionPush, ToBranch: "main", Timestamp: ts},
			want:  "alice pushed to main on 01 April 2024 - 04:00 PM UTC",
		},
		{
			name:  "pull request",
			event: Event{Author: "bob", Action: ActionPullRequest, FromBranch: "feature/x", ToBranch: "main", Timestamp: ts},
			want:  "bob submitted a pull request from feature/x to main on 01 April 2024 - 04:00 PM UTC",
		},
		{
			name:  "merge",
			event: Event{Author: "carol", Action: ActionMerge, FromBranch: "dev", ToBranch: "main", Timestamp: ts},
			want:  "carol merged branch dev to main on 01 April 2024 - 04:00 PM UTC",
		},
		{
			name:  "unknown",
			event: Event{Author: "dave", Action: "DEPLOY"},
			want:  "Unknown action: DEPLOY by dave",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Format(tc.event); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
