package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/infra"
)

const defaultHeartbeat = 15 * time.Second

type pageInfoReply struct {
	Description string `json:"description"`
}

// Stream is the server-sent event stream the extension shim consumes.
// Each bridge command is one event named after its type.
func Stream(d Deps) http.HandlerFunc {
	heartbeat := d.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		commands, cancel := d.Hub.Subscribe()
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
		flusher.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return

			case cmd, ok := <-commands:
				if !ok {
					return
				}
				data, err := json.Marshal(cmd)
				if err != nil {
					d.Logger.Error("failed to serialize command", zap.Error(err))
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", cmd.Type, data); err != nil {
					d.Logger.Debug("stream closed during write", zap.Error(err))
					return
				}
				flusher.Flush()

			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// Reply completes a getPageInfo command.
func Reply(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var body pageInfoReply
		if err := decode(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := d.Hub.Reply(id, body.Description); err != nil {
			if errors.Is(err, infra.ErrUnknownReply) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
