package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/web_mon/internal/domain"
	"github.com/eliteGoblin/focusd/web_mon/internal/infra"
	"github.com/eliteGoblin/focusd/web_mon/internal/usecase"
)

// Hub is the extension-facing side of the tab bridge.
type Hub interface {
	Subscribe() (<-chan infra.Command, func())
	Reply(id, description string) error
	Connected() bool
	TrackTab(tab domain.Tab)
	TrackURL(tabID int, url string)
	ForgetTab(tabID int)
}

// Deps carries everything the handlers need.
type Deps struct {
	Logger          *zap.Logger
	StartTime       time.Time
	Version         string
	Settings        *usecase.SettingsService
	Enforcer        *usecase.Enforcer
	Messages        *usecase.MessageHandler
	Hub             Hub
	ClassifyTimeout time.Duration // deadline of a detached classification
	Heartbeat       time.Duration // SSE keep-alive interval
}
