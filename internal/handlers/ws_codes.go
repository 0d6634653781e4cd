// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the sync handler.
const (
	BadSubprotocolError = 3000 // Client connected without the sync subprotocol.
	SlowConsumerError   = 3001 // Client fell too far behind the change stream and was dropped.
	ShuttingDownError   = 3002 // Server is stopping; clients should reconnect.
)
