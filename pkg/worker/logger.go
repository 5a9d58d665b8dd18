package worker

import (
	"log"
	"os"
)

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...interface{})
}

// defaultLogger matches the gitfeed/<component> prefix the server logs with.
func defaultLogger() Logger {
	return log.New(os.Stdout, "gitfeed/worker ", log.LstdFlags|log.Lmicroseconds)
}
