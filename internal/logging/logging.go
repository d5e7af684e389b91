// Package logging wires zerolog into the hub's process: a single global
// logger configured at startup, and a couple of request/job-scoped helpers
// that attach structured fields.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. level is one of zerolog's
// level names ("debug", "info", "warn", "error"); an unrecognized value
// falls back to info.
func Init(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Caller().Logger()
}

// ForDelivery returns a logger carrying the webhook delivery id and event
// kind, attached to every log line the dispatcher and its handlers emit
// while processing one event.
func ForDelivery(deliveryID, kind string) zerolog.Logger {
	return log.With().Str("delivery_id", deliveryID).Str("event_kind", kind).Logger()
}

// ForJob returns a logger carrying a worker job's kind and id.
func ForJob(kind, jobID string) zerolog.Logger {
	return log.With().Str("job_kind", kind).Str("job_id", jobID).Logger()
}
