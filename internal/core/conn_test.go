package core

import "sync"

// fakeConn records pushed events for assertions.
type fakeConn struct {
	mu     sync.Mutex
	events []pushedEvent
	closed bool
}

type pushedEvent struct {
	Event   string
	Payload any
}

func (c *fakeConn) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, pushedEvent{Event: event, Payload: payload})
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) eventsNamed(event string) []pushedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []pushedEvent
	for _, e := range c.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
