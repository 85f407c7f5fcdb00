package domain

import "errors"

var (
	// ErrTabNotFound is returned when the daemon has no record of a tab.
	ErrTabNotFound = errors.New("tab not found")

	// ErrBridgeUnavailable is returned when no extension shim is connected.
	ErrBridgeUnavailable = errors.New("browser bridge not connected")

	// ErrNoModelAvailable is returned when every endpoint of the fallback chain was exhausted
	// without a more specific message.
	ErrNoModelAvailable = errors.New("no AI model responded")

	// ErrInvalidSetting is returned when a settings update carries an unusable value.
	ErrInvalidSetting = errors.New("invalid setting")
)
