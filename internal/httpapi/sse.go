package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleSessionStream pushes a session snapshot right away and then on
// every tick until the client goes away.
func (s *Server) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var lastUpdate time.Time
	send := func(force bool) bool {
		resp := s.sessionResponse()
		if !force && resp.UpdatedAt.Equal(lastUpdate) {
			// keep the connection alive without resending the item list
			_, err := fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
			return err == nil
		}
		lastUpdate = resp.UpdatedAt

		payload, err := json.Marshal(resp)
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: session\ndata: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(true) {
		return
	}

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send(false) {
				return
			}
		}
	}
}
