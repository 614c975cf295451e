package ws

const (
	// client - server
	MsgDraft = "draft"
	MsgPing  = "ping"

	// server - client
	MsgReady   = "ready"
	MsgSession = "session"
	MsgPong    = "pong"
	MsgError   = "error"
)
