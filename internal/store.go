package internal

import (
	"fmt"
	"strings"

	"gitfeed/pkg/storage"
	"gitfeed/pkg/storage/memory"
	"gitfeed/pkg/storage/redisstore"
	"gitfeed/pkg/storage/sqlstore"
)

// OpenEventStore opens the event store selected by cfg.Driver.
func OpenEventStore(cfg StorageConfig) (storage.EventStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		return memory.New(), nil
	case "redis":
		return redisstore.Open(redisstore.Config{
			URL:       cfg.DSN,
			Addr:      cfg.Redis.Addr,
			Username:  cfg.Redis.Username,
			Password:  cfg.Redis.Password,
			Database:  cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	}
	if sqlstore.NormalizeDriver(driver) == "" {
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
	return sqlstore.Open(sqlstore.Config{
		Driver:      driver,
		DSN:         cfg.DSN,
		Table:       cfg.Table,
		AutoMigrate: cfg.AutoMigrate,
	})
}
