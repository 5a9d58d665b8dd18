package events

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Action is the kind of repository activity an Event records.
type Action string

const (
	ActionPush        Action = "PUSH"
	ActionPullRequest Action = "PULL_REQUEST"
	ActionMerge       Action = "MERGE"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionPush, ActionPullRequest, ActionMerge:
		return true
	default:
		return false
	}
}

// ErrInvalidEvent is returned by Validate for records that must not be stored.
var ErrInvalidEvent = errors.New("invalid event")

// Event is the normalized record written to the store.
type Event struct {
	// ID is assigned by the store on insertion.
	ID string `json:"id"`
	// RequestID identifies the source object: the head commit for pushes, the pull request id otherwise.
	RequestID  string    `json:"request_id,omitempty"`
	Author     string    `json:"author"`
	Action     Action    `json:"action"`
	FromBranch string    `json:"from_branch"`
	ToBranch   string    `json:"to_branch"`
	Timestamp  time.Time `json:"timestamp"`
	Repository string    `json:"repository,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Validate checks the invariants every stored record must hold.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Author) == "" {
		return fmt.Errorf("%w: author is empty", ErrInvalidEvent)
	}
	if !e.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, e.Action)
	}
	return nil
}

// Fields returns the record as a flat parameter map, keyed like its JSON form.
func (e Event) Fields() map[string]interface{} {
	return map[string]interface{}{
		"id":          e.ID,
		"request_id":  e.RequestID,
		"author":      e.Author,
		"action":      string(e.Action),
		"from_branch": e.FromBranch,
		"to_branch":   e.ToBranch,
		"repository":  e.Repository,
		"timestamp":   e.Timestamp.UTC().Format(time.RFC3339),
	}
}
