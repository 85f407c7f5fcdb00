package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
	"github.com/eliteGoblin/focusd/web_mon/internal/usecase"
)

// GetSettings returns the configuration with the API key masked.
func GetSettings(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := d.Settings.Current(r.Context())
		if err != nil {
			d.Logger.Error("failed to load settings", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load settings")
			return
		}
		writeJSON(w, http.StatusOK, usecase.Redacted(cfg))
	}
}

// PatchSettings applies a partial update.
func PatchSettings(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p usecase.SettingsPatch
		if err := decode(r, &p); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		cfg, err := d.Settings.Patch(r.Context(), p)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidSetting) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			d.Logger.Error("failed to update settings", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to update settings")
			return
		}
		d.Logger.Info("settings updated", zap.String("focus_mode", string(cfg.FocusMode)))
		writeJSON(w, http.StatusOK, usecase.Redacted(cfg))
	}
}

// ResetSession clears every session-blocked URL.
func ResetSession(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Settings.ResetSession(r.Context()); err != nil {
			d.Logger.Error("failed to reset session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to reset session")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
