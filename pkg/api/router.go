// Package api exposes the HTTP surface: the webhook receiver, the feed and the page.
package api

import (
	"expvar"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"

	"gitfeed/internal"
	"gitfeed/pkg/storage"
)

// RouterConfig wires handlers into a mux.
type RouterConfig struct {
	Server      internal.ServerConfig
	Feed        internal.FeedConfig
	WebhookPath string
	Webhook     http.Handler
	Store       storage.EventStore
	Logger      *log.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Webhook != nil {
		path := cfg.WebhookPath
		if path == "" {
			path = "/webhook"
		}
		mux.Handle("POST "+path, internal.NewRateLimitHandler(cfg.Webhook, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, 10*time.Minute))
	}

	var feed http.Handler = &FeedHandler{
		Store:        cfg.Store,
		DefaultLimit: cfg.Feed.DefaultLimit,
		MaxLimit:     cfg.Feed.MaxLimit,
		Logger:       cfg.Logger,
	}
	if len(cfg.Server.CORSAllowedOrigins) > 0 {
		feed = cors.New(cors.Options{
			AllowedOrigins: cfg.Server.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet},
		}).Handler(feed)
	}
	mux.Handle("/events", feed)

	mux.Handle("GET /{$}", &IndexHandler{EventsPath: "/events", PollIntervalSeconds: cfg.Feed.PollIntervalSeconds})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	if cfg.Server.MetricsEnabled {
		path := cfg.Server.MetricsPath
		if path == "" {
			path = "/debug/vars"
		}
		mux.Handle("GET "+path, expvar.Handler())
	}
	return mux
}
