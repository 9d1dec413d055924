package engine

import "sync"

// StaticContainer is a fixed-size surface used when there is no real screen,
// such as the HTTP API and the generate command.
type StaticContainer struct {
	mu        sync.Mutex
	id        string
	width     int
	height    int
	connected bool
}

// NewStaticContainer creates a connected container with the given size.
func NewStaticContainer(id string, width, height int) *StaticContainer {
	return &StaticContainer{id: id, width: width, height: height, connected: true}
}

func (c *StaticContainer) ID() string { return c.id }

func (c *StaticContainer) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *StaticContainer) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// Resize changes the reported dimensions.
func (c *StaticContainer) Resize(width, height int) {
	c.mu.Lock()
	c.width, c.height = width, height
	c.mu.Unlock()
}

// Detach marks the container as unmounted.
func (c *StaticContainer) Detach() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

// Attach marks the container as mounted again.
func (c *StaticContainer) Attach() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
}
