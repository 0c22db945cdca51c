package handlers

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// requestLogFormatter logs one line per request through zerolog. The query
// string is left out because the websocket endpoint takes its token there.
type requestLogFormatter struct{}

type requestLogEntry struct {
	req *http.Request
}

func (requestLogFormatter) NewLogEntry(r *http.Request) chimiddleware.LogEntry {
	return &requestLogEntry{req: r}
}

func (e *requestLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	event := log.Info()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.
		Str("request_id", chimiddleware.GetReqID(e.req.Context())).
		Str("method", e.req.Method).
		Str("path", e.req.URL.Path).
		Str("remote_addr", e.req.RemoteAddr).
		Int("status", status).
		Int("bytes", bytes).
		Dur("elapsed", elapsed).
		Msg("Request handled")
}

func (e *requestLogEntry) Panic(v interface{}, stack []byte) {
	log.Error().
		Str("request_id", chimiddleware.GetReqID(e.req.Context())).
		Str("path", e.req.URL.Path).
		Interface("panic", v).
		Bytes("stack", stack).
		Msg("Request panicked")
}

// requestLogger is chi's request logger with the zerolog formatter
func requestLogger() func(http.Handler) http.Handler {
	return chimiddleware.RequestLogger(requestLogFormatter{})
}
