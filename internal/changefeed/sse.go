package changefeed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/masig/pricebook/internal/platform/httpx"
)

const keepAliveInterval = 25 * time.Second

// StreamHandler streams events for table as Server-Sent Events.
func (f *Feed) StreamHandler(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpx.Problem(w, http.StatusInternalServerError, "Streaming Unsupported", "")
			return
		}
		typ, err := ParseEventType(r.URL.Query().Get("type"))
		if err != nil {
			httpx.RespondError(w, err)
			return
		}

		events, closeFn, err := f.Subscribe(r.Context(), table, typ)
		if err != nil {
			f.logger.Error("changefeed stream", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		defer func() { _ = closeFn() }()
		// Streams outlive the server write timeout.
		_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case ev, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
