package server

import "errors"

var (
	ErrServerClosed         = errors.New("server: closed")
	ErrServerNotRunning     = errors.New("server: not running")
	ErrServerAlreadyRunning = errors.New("server: already running")
	// ErrMaxClientsReached rejects feed subscribers beyond Config.MaxClients.
	ErrMaxClientsReached = errors.New("server: feed client limit reached")
	ErrInvalidConfig     = errors.New("server: invalid configuration")
	ErrListenerFailed    = errors.New("server: listen failed")
)
