// Package webhook receives GitHub deliveries and turns them into stored events.
package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/webhooks/v6/github"

	"gitfeed/internal"
	"gitfeed/pkg/normalize"
	"gitfeed/pkg/storage"
)

// GitHubHandler handles POST /webhook.
type GitHubHandler struct {
	// hook parses payloads only; signatures are checked by verifySignature
	// before it runs.
	hook     *github.Webhook
	secret   string
	store    storage.EventStore
	notifier *internal.Notifier
	logger   *log.Logger
	maxBody  int64
	now      func() time.Time
}

var errInvalidSignature = errors.New("invalid signature")

var githubEvents = []github.Event{
	github.PingEvent,
	github.PushEvent,
	github.PullRequestEvent,
}

// NewGitHubHandler creates a handler. Signatures are only checked when secret
// is non-empty. notifier may be nil.
func NewGitHubHandler(secret string, store storage.EventStore, notifier *internal.Notifier, logger *log.Logger, maxBody int64) (*GitHubHandler, error) {
	if store == nil {
		return nil, errors.New("event store is required")
	}
	hook, err := github.New()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.Default()
	}
	return &GitHubHandler{
		hook:     hook,
		secret:   secret,
		store:    store,
		notifier: notifier,
		logger:   logger,
		maxBody:  maxBody,
		now:      time.Now,
	}, nil
}

func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	reqID := requestID(r)
	w.Header().Set("X-Request-Id", reqID)
	logger := internal.WithRequestID(h.logger, reqID)
	eventName := r.Header.Get("X-GitHub-Event")
	internal.IncRequest(eventName)

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(w, logger, http.StatusRequestEntityTooLarge, "too_large", "payload too large")
			return
		}
		h.reject(w, logger, http.StatusBadRequest, "read", "unreadable body")
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(rawBody))

	if err := h.verifySignature(r.Header, rawBody); err != nil {
		logger.Printf("signature check failed: %v", err)
		h.reject(w, logger, http.StatusUnauthorized, "signature", "invalid signature")
		return
	}

	payload, err := h.hook.Parse(r, githubEvents...)
	if err != nil {
		h.rejectParse(w, logger, eventName, err)
		return
	}

	if _, ok := payload.(github.PingPayload); ok {
		writeJSON(w, http.StatusOK, response{Status: "pong"})
		return
	}

	record, err := normalize.Normalize(eventName, rawBody, h.now())
	if err != nil {
		if errors.Is(err, normalize.ErrIgnored) {
			logger.Printf("github %s ignored: %v", eventName, err)
			writeJSON(w, http.StatusOK, response{Status: "ignored"})
			return
		}
		h.reject(w, logger, http.StatusBadRequest, "invalid", err.Error())
		return
	}
	record.RequestID = firstNonEmpty(record.RequestID, reqID)

	if err := h.store.Save(r.Context(), &record); err != nil {
		internal.IncStoreError()
		logger.Printf("store failed: %v", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}
	internal.IncStored(string(record.Action))
	logger.Printf("stored id=%s action=%s author=%s to=%s", record.ID, record.Action, record.Author, record.ToBranch)

	h.notifier.Notify(r.Context(), eventName, reqID, record, rawBody)
	writeJSON(w, http.StatusOK, response{Status: "success", ID: record.ID})
}

func (h *GitHubHandler) rejectParse(w http.ResponseWriter, logger *log.Logger, eventName string, err error) {
	switch {
	case errors.Is(err, github.ErrEventNotFound):
		h.reject(w, logger, http.StatusBadRequest, "unsupported", "unsupported event: "+eventName)
	case errors.Is(err, github.ErrMissingGithubEventHeader):
		h.reject(w, logger, http.StatusBadRequest, "missing_event", "missing X-GitHub-Event header")
	default:
		logger.Printf("github parse failed: %v", err)
		h.reject(w, logger, http.StatusBadRequest, "malformed", "malformed payload")
	}
}

func (h *GitHubHandler) reject(w http.ResponseWriter, logger *log.Logger, status int, reason, msg string) {
	internal.IncRejected(reason)
	logger.Printf("rejected status=%d reason=%s: %s", status, reason, msg)
	writeError(w, status, msg)
}

// verifySignature checks X-Hub-Signature-256, or X-Hub-Signature when only
// the sha1 header is sent. Without a secret every delivery passes.
func (h *GitHubHandler) verifySignature(header http.Header, body []byte) error {
	if h.secret == "" {
		return nil
	}
	if sig := strings.TrimSpace(header.Get("X-Hub-Signature-256")); sig != "" {
		if !verifyGitHubSHA256(h.secret, body, sig) {
			return fmt.Errorf("%w: X-Hub-Signature-256", errInvalidSignature)
		}
		return nil
	}
	if sig := strings.TrimSpace(header.Get("X-Hub-Signature")); sig != "" {
		if !verifyGitHubSHA1(h.secret, body, sig) {
			return fmt.Errorf("%w: X-Hub-Signature", errInvalidSignature)
		}
		return nil
	}
	return fmt.Errorf("%w: no signature header", errInvalidSignature)
}

func verifyGitHubSHA256(secret string, body []byte, signature string) bool {
	return verifyHMAC(sha256.New, "sha256=", sha256.Size, secret, body, signature)
}

func verifyGitHubSHA1(secret string, body []byte, signature string) bool {
	return verifyHMAC(sha1.New, "sha1=", sha1.Size, secret, body, signature)
}

// verifyHMAC compares signature, "<prefix><hex digest>", with the HMAC of body.
// Headers with the wrong prefix or digest length fail without hashing.
func verifyHMAC(hashFn func() hash.Hash, prefix string, size int, secret string, body []byte, signature string) bool {
	if secret == "" || !strings.HasPrefix(signature, prefix) {
		return false
	}
	got := strings.ToLower(strings.TrimPrefix(signature, prefix))
	if len(got) != hex.EncodedLen(size) {
		return false
	}
	mac := hmac.New(hashFn, []byte(secret))
	_, _ = mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(got), []byte(expected))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
