package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"gitfeed/internal"
	"gitfeed/pkg/events"
	"gitfeed/pkg/storage"
)

var errInvalidLimit = errors.New("limit must be a positive integer")

// FeedItem is one entry of GET /events: the stored record plus its rendered line.
type FeedItem struct {
	events.Event
	Message string `json:"message"`
}

// FeedHandler serves the most recent events, newest first.
type FeedHandler struct {
	Store        storage.EventStore
	DefaultLimit int
	MaxLimit     int
	Logger       *log.Logger
}

func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, err := h.limit(r.URL.Query().Get("limit"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.Store.ListRecent(r.Context(), limit)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Printf("list events failed: %v", err)
		}
		http.Error(w, "list events failed", http.StatusInternalServerError)
		return
	}
	internal.IncFeedRead()

	items := make([]FeedItem, 0, len(records))
	for _, record := range records {
		items = append(items, FeedItem{Event: record, Message: events.Format(record)})
	}
	writeJSON(w, items)
}

func (h *FeedHandler) limit(raw string) (int, error) {
	limit := h.DefaultLimit
	if limit <= 0 {
		limit = 10
	}
	raw = strings.TrimSpace(raw)
	if raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return 0, errInvalidLimit
		}
		limit = parsed
	}
	if h.MaxLimit > 0 && limit > h.MaxLimit {
		limit = h.MaxLimit
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
