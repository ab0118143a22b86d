package model

// ConnectionStatus is the coarse transport health surfaced to the UI
type ConnectionStatus string

const (
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionReconnecting ConnectionStatus = "reconnecting"
)

// ConnectionState is owned by the connection manager and surfaced read-only.
// Attempt counts failed reconnect attempts and resets to zero on success;
// NextRetrySeconds ticks down once per second while reconnecting.
type ConnectionState struct {
	Status           ConnectionStatus `json:"status"`
	Attempt          int              `json:"attempt"`
	NextRetrySeconds int              `json:"next_retry_seconds"`
}
