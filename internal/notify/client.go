package notify

// Client is anything that delivers events: a WebSocket connection for one
// user, or a sink such as the Telegram bot that delivers to everyone.
type Client interface {
	// GetUserID returns the user the client belongs to. Sinks return 0.
	GetUserID() int64

	// GetSendChannel returns the channel the hub writes events to.
	GetSendChannel() chan<- Event

	// Run starts the client's pumps.
	Run()
	// Close shuts the client down. The hub calls it exactly once.
	Close()
}
