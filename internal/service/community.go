package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjstillabower/plants-doctor/internal/gateway"
	"github.com/kjstillabower/plants-doctor/internal/models"
	"github.com/kjstillabower/plants-doctor/internal/observability"
)

// WelcomeMessage opens every chat transcript.
var WelcomeMessage = models.ChatMessage{
	ID:   "initial",
	Role: models.RoleModel,
	Text: "Welcome to the AI Chatbot! I am Plants Doctor. Ask me anything about farming.",
}

// conversation is one user's chat: the model session plus the visible transcript.
type conversation struct {
	chat *gateway.ChatSession

	mu         sync.Mutex
	transcript []models.ChatMessage
	busy       bool
	lastUsed   time.Time
}

// Community is the AI chat assistant. Each owner gets a separate conversation,
// created on first message and dropped by Close or CloseIdle.
type Community struct {
	ai  gateway.AI
	now func() time.Time

	mu            sync.Mutex
	conversations map[string]*conversation
}

func NewCommunity(ai gateway.AI) *Community {
	return &Community{ai: ai, now: time.Now, conversations: make(map[string]*conversation)}
}

// Transcript returns a copy of owner's messages, starting with WelcomeMessage.
func (c *Community) Transcript(owner string) []models.ChatMessage {
	c.mu.Lock()
	conv := c.conversations[owner]
	c.mu.Unlock()
	if conv == nil {
		return []models.ChatMessage{WelcomeMessage}
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return append([]models.ChatMessage(nil), conv.transcript...)
}

// Send appends the user's message, asks the model, and appends the reply. On a
// failed call the apology is appended to the transcript only; the model history
// is unchanged.
func (c *Community) Send(ctx context.Context, owner, text string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, invalidInput(MsgEmptyMessage)
	}

	conv := c.conversationFor(owner)
	conv.mu.Lock()
	if conv.busy {
		conv.mu.Unlock()
		recordBusy("chat")
		return models.ChatMessage{}, busy()
	}
	conv.busy = true
	conv.lastUsed = c.now()
	conv.transcript = append(conv.transcript, models.ChatMessage{ID: uuid.NewString(), Role: models.RoleUser, Text: text})
	conv.mu.Unlock()
	observability.ChatMessagesTotal.WithLabelValues(string(models.RoleUser)).Inc()

	reply, err := conv.chat.Send(ctx, text)

	conv.mu.Lock()
	defer conv.mu.Unlock()
	conv.busy = false
	conv.lastUsed = c.now()
	if err != nil {
		loggerFromContext(ctx).Warn("chat turn failed", zap.Error(err))
		conv.transcript = append(conv.transcript, models.ChatMessage{ID: uuid.NewString(), Role: models.RoleModel, Text: MsgChatFailed})
		return models.ChatMessage{}, &UserError{Message: MsgChatFailed, Err: err}
	}
	conv.transcript = append(conv.transcript, reply)
	observability.ChatMessagesTotal.WithLabelValues(string(models.RoleModel)).Inc()
	return reply, nil
}

// Close discards owner's conversation, if any.
func (c *Community) Close(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.conversations[owner]; ok {
		delete(c.conversations, owner)
		observability.ChatSessionsActive.Dec()
	}
}

// CloseIdle discards conversations unused for longer than maxIdle. A
// conversation with a turn in flight is kept. It returns how many were closed.
func (c *Community) CloseIdle(maxIdle time.Duration) int {
	cutoff := c.now().Add(-maxIdle)
	c.mu.Lock()
	defer c.mu.Unlock()
	closed := 0
	for owner, conv := range c.conversations {
		conv.mu.Lock()
		idle := !conv.busy && conv.lastUsed.Before(cutoff)
		conv.mu.Unlock()
		if idle {
			delete(c.conversations, owner)
			observability.ChatSessionsActive.Dec()
			closed++
		}
	}
	return closed
}

// Active returns the number of open conversations.
func (c *Community) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conversations)
}

func (c *Community) conversationFor(owner string) *conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.conversations[owner]
	if !ok {
		conv = &conversation{
			chat:       c.ai.OpenChat(),
			transcript: []models.ChatMessage{WelcomeMessage},
			lastUsed:   c.now(),
		}
		c.conversations[owner] = conv
		observability.ChatSessionsActive.Inc()
	}
	return conv
}
