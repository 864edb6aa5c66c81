package models

import "time"

// ConnPhase — явные состояния соединения с бродкастером.
type ConnPhase string

const (
	ConnConnected    ConnPhase = "connected"
	ConnDisconnected ConnPhase = "disconnected"
	ConnReconnecting ConnPhase = "reconnecting"
)

// ConnState — снапшот машины состояний фида. Attempt и Delay
// заполнены только в фазе reconnecting.
type ConnState struct {
	Phase   ConnPhase
	Attempt int
	Delay   time.Duration
	At      time.Time
}
