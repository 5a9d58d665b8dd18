package internal

import (
	// database/sql drivers for the sql and riverqueue notify drivers.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)
