package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// riverQueuePublisher enqueues stored events as River jobs by inserting rows
// into the river_job table directly.
type riverQueuePublisher struct {
	db    *sql.DB
	cfg   RiverQueueConfig
	query string
}

func newRiverQueuePublisher(cfg RiverQueueConfig) (*riverQueuePublisher, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}
	if cfg.DSN == "" {
		return nil, errors.New("riverqueue dsn is required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "river_job"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &riverQueuePublisher{db: db, cfg: cfg, query: riverInsertQuery(table)}, nil
}

func riverInsertQuery(table string) string {
	return fmt.Sprintf(
		`INSERT INTO %s (args, kind, max_attempts, metadata, priority, queue, scheduled_at, tags)
VALUES ($1, $2, $3, $4, $5, $6, now(), $7)`,
		pq.QuoteIdentifier(table),
	)
}

// riverJobArgs builds the args and metadata columns for a notification.
func riverJobArgs(topic string, n Notification) ([]byte, []byte, error) {
	args, err := json.Marshal(n.Record)
	if err != nil {
		return nil, nil, err
	}
	metadata, err := json.Marshal(map[string]string{
		"event":      n.Event,
		"request_id": n.RequestID,
		"topic":      topic,
	})
	if err != nil {
		return nil, nil, err
	}
	return args, metadata, nil
}

func (p *riverQueuePublisher) Publish(ctx context.Context, topic string, n Notification) error {
	args, metadata, err := riverJobArgs(topic, n)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(
		ctx,
		p.query,
		string(args),
		p.cfg.Kind,
		p.cfg.MaxAttempts,
		string(metadata),
		p.cfg.Priority,
		p.cfg.Queue,
		pq.Array(p.cfg.Tags),
	)
	return err
}

func (p *riverQueuePublisher) PublishForDrivers(ctx context.Context, topic string, n Notification, drivers []string) error {
	return p.Publish(ctx, topic, n)
}

func (p *riverQueuePublisher) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
