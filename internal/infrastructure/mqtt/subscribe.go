package mqtt

import (
	"fmt"
	"sort"
)

// Subscribe routes messages matching pattern (which may use + and #) to
// handler. The subscription is replayed after reconnects until Unsubscribe.
// Subscribing again to the same pattern replaces its handler.
func (c *Client) Subscribe(pattern string, qos byte, handler MessageHandler) error {
	if err := checkTopic(pattern, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, pattern)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	prev, had := c.subs[pattern]
	c.subs[pattern] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if err := await(c.paho.Subscribe(pattern, qos, c.dispatch(handler)), ackTimeout, ErrSubscribeFailed); err != nil {
		c.mu.Lock()
		if had {
			c.subs[pattern] = prev
		} else {
			delete(c.subs, pattern)
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe drops a pattern registered with Subscribe. Messages already
// in flight may still reach the old handler.
func (c *Client) Unsubscribe(pattern string) error {
	if pattern == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	delete(c.subs, pattern)
	c.mu.Unlock()

	return await(c.paho.Unsubscribe(pattern), ackTimeout, ErrUnsubscribeFailed)
}

// Subscriptions returns the registered patterns in sorted order.
func (c *Client) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for p := range c.subs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
