package notify_test

import (
	"sync"

	"supportbot/backend/internal/notify"
)

type MockClient struct {
	userID      int64
	RecvChannel chan notify.Event

	mu     sync.Mutex
	closed bool
	runs   int
}

func newMockClient(userID int64, buffer int) *MockClient {
	return &MockClient{
		userID:      userID,
		RecvChannel: make(chan notify.Event, buffer),
	}
}

func (c *MockClient) GetUserID() int64                    { return c.userID }
func (c *MockClient) GetSendChannel() chan<- notify.Event { return c.RecvChannel }

func (c *MockClient) Run() {
	c.mu.Lock()
	c.runs++
	c.mu.Unlock()
}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *MockClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
