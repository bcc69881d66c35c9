package handler

import (
	"log/slog"
	"net/http"

	"static-server/internal/metrics"
)

// MetricsPath is where the scrape endpoint is mounted
const MetricsPath = "/metrics"

// EventsPath is where game events are accepted when game metrics are enabled
const EventsPath = "/events"

// NewFileServer composes the file-server port's handler: request counting,
// isolation headers and access logging around the file handler. Nothing else
// is routed on this port.
func NewFileServer(files http.Handler, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return Chain(files,
		CountRequests(m),
		IsolationHeaders,
		AccessLog(logger),
	)
}

// NewMetricsServer builds the metrics port's mux. events may be nil.
func NewMetricsServer(m *metrics.Metrics, events *EventHandler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(MetricsPath, m.Handler())
	if events != nil {
		mux.Handle(EventsPath, Chain(http.HandlerFunc(events.RecordEvent),
			CORS(http.MethodPost),
		))
	}
	return mux
}
