package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/PriNova/graphone/internal/events"
)

const keepAliveInterval = 15 * time.Second

// handleEvents streams UI events as server-sent events. A reconnecting client
// sends Last-Event-ID and gets the buffered events it missed first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Subscribe before replaying so nothing published in between is lost.
	ch, cancel := s.events.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	lastID := parseLastEventID(r.Header.Get("Last-Event-ID"))
	for _, ev := range s.events.SnapshotSince(lastID) {
		if err := writeSSE(w, ev); err != nil {
			return
		}
		lastID = ev.ID
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.ID <= lastID {
				// Already sent during replay.
				continue
			}
			if ev.ID > lastID+1 {
				// The hub dropped events for this subscriber; catch up from the ring.
				var err error
				if lastID, err = s.replayBefore(w, lastID, ev.ID); err != nil {
					return
				}
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			lastID = ev.ID
			flusher.Flush()
		case <-keepAlive.C:
			// SSE comment line as keep-alive.
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// replayBefore writes the buffered events after lastID and before upTo, and
// returns the id of the last one written.
func (s *Server) replayBefore(w http.ResponseWriter, lastID, upTo int64) (int64, error) {
	for _, missed := range s.events.SnapshotSince(lastID) {
		if missed.ID >= upTo {
			break
		}
		if err := writeSSE(w, missed); err != nil {
			return lastID, err
		}
		lastID = missed.ID
	}
	return lastID, nil
}

func parseLastEventID(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeSSE(w http.ResponseWriter, ev events.Event) error {
	if _, err := fmt.Fprintf(w, "id: %d\n", ev.ID); err != nil {
		return err
	}
	if ev.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", ev.Type); err != nil {
			return err
		}
	}
	// Forwarded worker objects may span lines; each needs its own data field.
	for _, line := range bytes.Split(ev.Data, []byte("\n")) {
		if _, err := fmt.Fprintf(w, "data: %s\n", bytes.TrimSuffix(line, []byte("\r"))); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}
