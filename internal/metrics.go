package internal

import "expvar"

var (
	requestsTotal  = expvar.NewMap("gitfeed_webhook_requests_total")
	rejectedTotal  = expvar.NewMap("gitfeed_webhook_rejected_total")
	storedTotal    = expvar.NewMap("gitfeed_events_stored_total")
	storeErrors    = expvar.NewInt("gitfeed_store_errors_total")
	publishErrors  = expvar.NewMap("gitfeed_publish_errors_total")
	feedReadsTotal = expvar.NewInt("gitfeed_feed_reads_total")
)

func IncRequest(event string) {
	requestsTotal.Add(event, 1)
}

// IncRejected counts deliveries answered with a client error, keyed by reason.
func IncRejected(reason string) {
	rejectedTotal.Add(reason, 1)
}

func IncStored(action string) {
	storedTotal.Add(action, 1)
}

func IncStoreError() {
	storeErrors.Add(1)
}

func IncPublishError(driver string) {
	publishErrors.Add(driver, 1)
}

func IncFeedRead() {
	feedReadsTotal.Add(1)
}
