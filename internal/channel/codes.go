package channel

import "github.com/coder/websocket"

// Close codes sent to clients. The three handshake codes are distinct so a
// client can tell which check failed.
const (
	CloseMissingToken websocket.StatusCode = 4000
	CloseInvalidToken websocket.StatusCode = 4001
	CloseUnauthorized websocket.StatusCode = 4002
	CloseInternal     websocket.StatusCode = websocket.StatusInternalError
)
