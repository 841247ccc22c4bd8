package widget

import (
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/webhook-chat/backend/internal/model/chat"
)

// EventType names a controller notification.
type EventType string

const (
	EventMessage  EventType = "message"
	EventTyping   EventType = "typing"
	EventThinking EventType = "thinking"
	EventCleared  EventType = "cleared"
)

// Event is pushed to every subscriber of a session.
type Event struct {
	Type      EventType     `json:"type"`
	SessionID string        `json:"sessionId"`
	Message   *chat.Message `json:"message,omitempty"`
	Pending   bool          `json:"pending,omitempty"`
	Text      string        `json:"text,omitempty"`
}

const subscriberBuffer = 32

// Subscribe registers a listener for sessionID. The returned cancel func
// unregisters it and closes the channel.
func (c *Controller) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	c.subMu.Lock()
	c.nextSubID++
	id := c.nextSubID
	if c.subs[sessionID] == nil {
		c.subs[sessionID] = make(map[int]chan Event)
	}
	c.subs[sessionID][id] = ch
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if subs, ok := c.subs[sessionID]; ok {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(c.subs, sessionID)
			}
		}
	}
	return ch, cancel
}

// publish never blocks; a subscriber that falls behind loses events.
func (c *Controller) publish(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			log.Debug().Str("component", "widget").Str("session", ev.SessionID).Str("event", string(ev.Type)).Msg("dropping event for slow subscriber")
		}
	}
}

func (c *Controller) publishMessage(sessionID string, msg chat.Message) {
	c.publish(Event{Type: EventMessage, SessionID: sessionID, Message: &msg})
}
