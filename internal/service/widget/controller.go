package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/webhook-chat/backend/internal/model/chat"
	"github.com/zhouzirui/webhook-chat/backend/internal/model/settings"
	"github.com/zhouzirui/webhook-chat/backend/internal/service/dispatch"
)

// ErrBusy is returned while a previous send for the session is pending.
var ErrBusy = errors.New("a message is already being sent")

const (
	WelcomeMessage = "👋 Welcome! I'm your AI assistant. Feel free to ask me anything or choose one of the conversation starters above to get started."
	TimeoutMessage = "Request timed out. Please try again."
)

// DefaultApologies are rotated for failed sends other than timeouts.
var DefaultApologies = []string{
	"I apologize, but I'm having trouble processing your request right now. Please try again in a moment.",
	"Sorry, something went wrong while reaching the assistant. Please try again shortly.",
	"I couldn't get a response just now. Please send your message again in a moment.",
}

// DefaultThinkingPhrases cycle while a send is pending.
var DefaultThinkingPhrases = []string{
	"Thinking...",
	"Working on it...",
	"Gathering my thoughts...",
	"Almost there...",
}

// Sender is the dispatcher as seen by the controller.
type Sender interface {
	Validate(rawText string) (string, error)
	Send(ctx context.Context, rawText string, cfg settings.Settings, sessionID string) (string, error)
	MaxMessageLength() int
}

// SettingsLoader reads the settings used for each send.
type SettingsLoader interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// Transcript stores the per-session message list.
type Transcript interface {
	CreateSession(ctx context.Context) (chat.Session, error)
	EnsureSession(ctx context.Context, id string) (chat.Session, bool, error)
	GetSession(ctx context.Context, id string) (chat.Session, error)
	Append(ctx context.Context, sessionID string, message chat.Message) error
	Clear(ctx context.Context, sessionID string) error
	All(ctx context.Context, sessionID string) ([]chat.Message, error)
}

// Options tunes the controller. Zero values use the defaults above.
type Options struct {
	ThinkingInterval time.Duration
	Welcome          string
	Apologies        []string
	ThinkingPhrases  []string
}

// Controller plays the role of the widget UI: it owns the pending flag,
// appends to the transcript and notifies listeners. Sends run on the
// controller's base context so an impatient HTTP client cannot cancel one;
// only the webhook timeout does.
type Controller struct {
	base       context.Context
	sender     Sender
	settings   SettingsLoader
	transcript Transcript
	opts       Options

	mu         sync.Mutex
	pending    map[string]bool
	apologyIdx int

	subMu     sync.Mutex
	subs      map[string]map[int]chan Event
	nextSubID int
}

// New wires a controller. base bounds every outbound send.
func New(base context.Context, sender Sender, loader SettingsLoader, transcript Transcript, opts Options) *Controller {
	if opts.ThinkingInterval <= 0 {
		opts.ThinkingInterval = 2 * time.Second
	}
	if opts.Welcome == "" {
		opts.Welcome = WelcomeMessage
	}
	if len(opts.Apologies) == 0 {
		opts.Apologies = DefaultApologies
	}
	if len(opts.ThinkingPhrases) == 0 {
		opts.ThinkingPhrases = DefaultThinkingPhrases
	}

	return &Controller{
		base:       base,
		sender:     sender,
		settings:   loader,
		transcript: transcript,
		opts:       opts,
		pending:    make(map[string]bool),
		subs:       make(map[string]map[int]chan Event),
	}
}

// MaxMessageLength exposes the dispatcher limit for character counters.
func (c *Controller) MaxMessageLength() int {
	return c.sender.MaxMessageLength()
}

// Open returns the session for sessionID, creating it (and its welcome
// message) when it is unknown. An empty sessionID issues a new one.
func (c *Controller) Open(ctx context.Context, sessionID string) (chat.Session, error) {
	var (
		session chat.Session
		created bool
		err     error
	)
	if sessionID == "" {
		session, err = c.transcript.CreateSession(ctx)
		created = err == nil
	} else {
		session, created, err = c.transcript.EnsureSession(ctx, sessionID)
	}
	if err != nil {
		return chat.Session{}, err
	}

	if created {
		if err := c.welcome(ctx, session.ID); err != nil {
			return chat.Session{}, err
		}
		log.Info().Str("component", "widget").Str("session", session.ID).Msg("session opened")
	}
	return session, nil
}

// Transcript returns the session's messages in display order.
func (c *Controller) Transcript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	return c.transcript.All(ctx, sessionID)
}

// Pending reports whether a send is outstanding for the session.
func (c *Controller) Pending(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[sessionID]
}

// Submit validates text, appends it, sends it and appends the reply. The
// returned message is the bot reply; dispatch failures are folded into an
// error-flagged reply rather than returned. Returned errors are ErrBusy, a
// *dispatch.ValidationError, or a transcript error.
func (c *Controller) Submit(ctx context.Context, sessionID, rawText string) (chat.Message, error) {
	if _, err := c.transcript.GetSession(ctx, sessionID); err != nil {
		return chat.Message{}, err
	}
	if !c.acquire(sessionID) {
		return chat.Message{}, ErrBusy
	}
	defer c.release(sessionID)

	text, err := c.sender.Validate(rawText)
	if err != nil {
		var verr *dispatch.ValidationError
		if errors.As(err, &verr) && verr.Reason == dispatch.ReasonTooLong {
			notice := chat.NewErrorMessage(fmt.Sprintf("Message too long. Please keep it under %d characters.", verr.MaxLength))
			if appendErr := c.append(ctx, sessionID, notice); appendErr != nil {
				return chat.Message{}, appendErr
			}
		}
		return chat.Message{}, err
	}

	if err := c.append(ctx, sessionID, chat.NewUserMessage(text)); err != nil {
		return chat.Message{}, err
	}

	typing := chat.NewTypingMessage()
	c.publish(Event{Type: EventTyping, SessionID: sessionID, Pending: true, Message: &typing})
	stopThinking := c.startThinking(sessionID)

	cfg, err := c.settings.Load(ctx)
	if err != nil {
		log.Warn().Str("component", "widget").Err(err).Msg("falling back to default settings")
	}

	reply, sendErr := c.sender.Send(c.base, text, cfg, sessionID)

	stopThinking()
	c.publish(Event{Type: EventTyping, SessionID: sessionID, Pending: false})

	var msg chat.Message
	if sendErr != nil {
		log.Error().Str("component", "widget").Str("session", sessionID).Err(sendErr).Msg("error sending message")
		msg = chat.NewErrorMessage(c.failureText(sendErr))
	} else {
		msg = chat.NewBotMessage(reply)
	}

	if err := c.append(ctx, sessionID, msg); err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

// Clear empties the transcript and shows the welcome message again.
func (c *Controller) Clear(ctx context.Context, sessionID string) error {
	if err := c.transcript.Clear(ctx, sessionID); err != nil {
		return err
	}
	c.publish(Event{Type: EventCleared, SessionID: sessionID})
	return c.welcome(ctx, sessionID)
}

func (c *Controller) welcome(ctx context.Context, sessionID string) error {
	return c.append(ctx, sessionID, chat.NewBotMessage(c.opts.Welcome))
}

func (c *Controller) append(ctx context.Context, sessionID string, msg chat.Message) error {
	if err := c.transcript.Append(ctx, sessionID, msg); err != nil {
		return err
	}
	c.publishMessage(sessionID, msg)
	return nil
}

func (c *Controller) acquire(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[sessionID] {
		return false
	}
	c.pending[sessionID] = true
	return true
}

func (c *Controller) release(sessionID string) {
	c.mu.Lock()
	delete(c.pending, sessionID)
	c.mu.Unlock()
}

// failureText maps a send error to the text shown in the transcript.
func (c *Controller) failureText(err error) string {
	var derr *dispatch.DispatchError
	if errors.As(err, &derr) && derr.Kind == dispatch.KindTimeout {
		return TimeoutMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	text := c.opts.Apologies[c.apologyIdx%len(c.opts.Apologies)]
	c.apologyIdx++
	return text
}

// startThinking publishes rotating phrases until the returned func is called.
func (c *Controller) startThinking(sessionID string) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.opts.ThinkingInterval)
		defer ticker.Stop()

		i := 0
		next := func() {
			c.publish(Event{Type: EventThinking, SessionID: sessionID, Text: c.opts.ThinkingPhrases[i%len(c.opts.ThinkingPhrases)]})
			i++
		}

		next()
		for {
			select {
			case <-done:
				return
			case <-c.base.Done():
				return
			case <-ticker.C:
				next()
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}
