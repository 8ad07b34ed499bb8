package core

// Client is the delivery side of a live connection. The bus hands it
// encoded frames; the transport drains Events to the socket.
type Client struct {
	id     string
	Events chan []byte
}

// NewClient constructs a client with a buffered event channel.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{
		id:     id,
		Events: make(chan []byte, buffer),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// Deliver queues a payload for the socket. Returns false if the buffer is full.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case c.Events <- payload:
		return true
	default:
		// Drop if slow consumer.
		return false
	}
}
