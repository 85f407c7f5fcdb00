package server

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
)

const messageClassify = "classify"

type inboundMessage struct {
	Type    string             `json:"type"`
	TabID   int                `json:"tabId"`
	Payload domain.PageRequest `json:"payload"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

// Messages accepts content script messages. Classification runs detached from
// the request; the verdict is delivered to the tab through the bridge.
func Messages(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg inboundMessage
		if err := decode(r, &msg); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if msg.Type != messageClassify {
			writeError(w, http.StatusBadRequest, "unknown message type: "+msg.Type)
			return
		}
		if msg.TabID <= 0 {
			writeError(w, http.StatusBadRequest, "tabId is required")
			return
		}
		if msg.Payload.URL == "" {
			writeError(w, http.StatusBadRequest, "payload.url is required")
			return
		}

		d.Hub.TrackURL(msg.TabID, msg.Payload.URL)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), d.ClassifyTimeout)
			defer cancel()
			if err := d.Messages.HandleClassifyMessage(ctx, msg.TabID, msg.Payload); err != nil {
				d.Logger.Error("classification failed",
					zap.Int("tab_id", msg.TabID),
					zap.String("url", msg.Payload.URL),
					zap.Error(err))
			}
		}()

		writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
	}
}
