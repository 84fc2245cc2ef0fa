package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// handleSettingsEvents streams settings snapshots as server-sent events. The
// first event is the current snapshot; later events follow each committed
// change. Slow clients only see the newest snapshot.
func handleSettingsEvents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		sub := deps.Settings.Subscribe()
		defer sub.Close()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case snap, ok := <-sub.C():
				if !ok {
					return
				}
				payload, err := json.Marshal(snap)
				if err != nil {
					slog.Error("marshal settings event", "error", err)
					return
				}
				if _, err := fmt.Fprintf(w, "event: settings\nid: %d\ndata: %s\n\n", snap.Revision(), payload); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
