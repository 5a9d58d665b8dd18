// Package normalize turns GitHub webhook deliveries into events.Event records.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"

	"gitfeed/pkg/events"
)

// Event type names as sent in the X-GitHub-Event header.
const (
	EventPush        = "push"
	EventPullRequest = "pull_request"
)

var (
	// ErrUnsupportedEvent is returned for event types the feed does not record.
	ErrUnsupportedEvent = errors.New("unsupported event type")
	// ErrMalformedPayload is returned when the body is not a valid payload for its event type.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrMissingField is returned when a required field is absent from the payload.
	ErrMissingField = errors.New("missing required field")
	// ErrIgnored marks well-formed deliveries that carry nothing worth recording,
	// such as branch deletions or pull request updates.
	ErrIgnored = errors.New("event ignored")
)

// IsValidation reports whether err should be answered as a client error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnsupportedEvent) ||
		errors.Is(err, ErrMalformedPayload) ||
		errors.Is(err, ErrMissingField)
}

// Supported reports whether eventType is one Normalize can turn into a record.
func Supported(eventType string) bool {
	switch eventType {
	case EventPush, EventPullRequest:
		return true
	default:
		return false
	}
}

// Normalize decodes body as an eventType delivery and maps it to a record.
// receivedAt is used when the payload carries no usable time.
func Normalize(eventType string, body []byte, receivedAt time.Time) (events.Event, error) {
	eventType = strings.TrimSpace(eventType)
	if !Supported(eventType) {
		return events.Event{}, fmt.Errorf("%w: %q", ErrUnsupportedEvent, eventType)
	}
	parsed, err := github.ParseWebHook(eventType, body)
	if err != nil {
		return events.Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if parsed == nil {
		return events.Event{}, fmt.Errorf("%w: empty %s payload", ErrMalformedPayload, eventType)
	}

	receivedAt = receivedAt.UTC()
	switch payload := parsed.(type) {
	case *github.PushEvent:
		return fromPush(payload, receivedAt)
	case *github.PullRequestEvent:
		return fromPullRequest(payload, receivedAt)
	default:
		return events.Event{}, fmt.Errorf("%w: %q", ErrUnsupportedEvent, eventType)
	}
}

func fromPush(payload *github.PushEvent, receivedAt time.Time) (events.Event, error) {
	if payload.GetDeleted() {
		return events.Event{}, fmt.Errorf("%w: branch deletion %s", ErrIgnored, payload.GetRef())
	}
	author := firstNonEmpty(payload.GetPusher().GetName(), payload.GetSender().GetLogin())
	if author == "" {
		return events.Event{}, fmt.Errorf("%w: pusher.name", ErrMissingField)
	}
	branch := branchFromRef(payload.GetRef())
	if branch == "" {
		return events.Event{}, fmt.Errorf("%w: ref", ErrMissingField)
	}

	return events.Event{
		RequestID:  payload.GetAfter(),
		Author:     author,
		Action:     events.ActionPush,
		ToBranch:   branch,
		Timestamp:  pick(receivedAt, payload.GetHeadCommit().GetTimestamp()),
		Repository: payload.GetRepo().GetFullName(),
		ReceivedAt: receivedAt,
	}, nil
}

func fromPullRequest(payload *github.PullRequestEvent, receivedAt time.Time) (events.Event, error) {
	pr := payload.GetPullRequest()
	if pr == nil {
		return events.Event{}, fmt.Errorf("%w: pull_request", ErrMissingField)
	}

	action := payload.GetAction()
	record := events.Event{
		FromBranch: pr.GetHead().GetRef(),
		ToBranch:   pr.GetBase().GetRef(),
		Repository: payload.GetRepo().GetFullName(),
		ReceivedAt: receivedAt,
	}
	if id := pr.GetID(); id != 0 {
		record.RequestID = strconv.FormatInt(id, 10)
	}

	switch {
	case action == "opened":
		record.Action = events.ActionPullRequest
		record.Author = firstNonEmpty(pr.GetUser().GetLogin(), payload.GetSender().GetLogin())
		record.Timestamp = pick(receivedAt, pr.GetCreatedAt())
	case action == "closed" && pr.GetMerged():
		record.Action = events.ActionMerge
		record.Author = firstNonEmpty(pr.GetMergedBy().GetLogin(), payload.GetSender().GetLogin())
		record.Timestamp = pick(receivedAt, pr.GetMergedAt(), pr.GetClosedAt())
	default:
		return events.Event{}, fmt.Errorf("%w: pull_request action %q", ErrIgnored, action)
	}

	switch {
	case record.Author == "":
		return events.Event{}, fmt.Errorf("%w: author login", ErrMissingField)
	case record.FromBranch == "":
		return events.Event{}, fmt.Errorf("%w: pull_request.head.ref", ErrMissingField)
	case record.ToBranch == "":
		return events.Event{}, fmt.Errorf("%w: pull_request.base.ref", ErrMissingField)
	}
	return record, nil
}

// branchFromRef strips the refs/heads/ or refs/tags/ prefix, keeping slashes in branch names.
func branchFromRef(ref string) string {
	ref = strings.TrimSpace(ref)
	for _, prefix := range []string{"refs/heads/", "refs/tags/"} {
		if strings.HasPrefix(ref, prefix) {
			return strings.TrimPrefix(ref, prefix)
		}
	}
	return ref
}

func pick(fallback time.Time, candidates ...github.Timestamp) time.Time {
	for _, candidate := range candidates {
		if !candidate.IsZero() {
			return candidate.UTC()
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
