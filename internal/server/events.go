package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
	"github.com/eliteGoblin/focusd/web_mon/internal/usecase"
)

type navigationEvent struct {
	TabID   int    `json:"tabId"`
	FrameID int    `json:"frameId"`
	URL     string `json:"url"`
}

type tabEvent struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
}

type decisionResponse struct {
	Decision usecase.Decision `json:"decision"`
}

// TabUpdated handles tabs.onUpdated.
func TabUpdated(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev usecase.TabUpdate
		if err := decode(r, &ev); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if ev.URL != "" {
			if ev.Active {
				d.Hub.TrackTab(domain.Tab{ID: ev.TabID, URL: ev.URL, Active: true})
			} else {
				d.Hub.TrackURL(ev.TabID, ev.URL)
			}
		}

		decision, err := d.Enforcer.OnTabUpdated(r.Context(), ev)
		if err != nil {
			d.Logger.Error("tab update failed", zap.Int("tab_id", ev.TabID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to evaluate tab")
			return
		}
		writeJSON(w, http.StatusOK, decisionResponse{Decision: decision})
	}
}

// NavigationCommitted handles webNavigation.onCommitted.
func NavigationCommitted(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev navigationEvent
		if err := decode(r, &ev); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if ev.FrameID == 0 && ev.URL != "" {
			d.Hub.TrackURL(ev.TabID, ev.URL)
		}

		decision, err := d.Enforcer.OnNavigationCommitted(r.Context(), ev.TabID, ev.FrameID, ev.URL)
		if err != nil {
			d.Logger.Error("navigation check failed", zap.Int("tab_id", ev.TabID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to evaluate navigation")
			return
		}
		writeJSON(w, http.StatusOK, decisionResponse{Decision: decision})
	}
}

// TabActivated handles tabs.onActivated. The shim may include the tab's URL.
func TabActivated(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev tabEvent
		if err := decode(r, &ev); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if ev.URL != "" {
			d.Hub.TrackTab(domain.Tab{ID: ev.TabID, URL: ev.URL, Active: true})
		}

		decision, err := d.Enforcer.OnTabActivated(r.Context(), ev.TabID)
		if err != nil {
			d.Logger.Error("tab activation failed", zap.Int("tab_id", ev.TabID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to evaluate tab")
			return
		}
		writeJSON(w, http.StatusOK, decisionResponse{Decision: decision})
	}
}

// TabRemoved forgets a closed tab. Pending alarms for it become stale.
func TabRemoved(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev tabEvent
		if err := decode(r, &ev); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		d.Hub.ForgetTab(ev.TabID)
		w.WriteHeader(http.StatusNoContent)
	}
}
