package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/kjstillabower/plants-doctor/internal/client"
	"github.com/kjstillabower/plants-doctor/internal/models"
	"github.com/kjstillabower/plants-doctor/internal/traffic"
)

// ChatSession is a multi-turn conversation seeded with ChatPersona.
// The full history is sent with every turn.
type ChatSession struct {
	gw *Gateway

	mu      sync.Mutex
	history []*genai.Content
}

// OpenChat starts an empty conversation.
func (g *Gateway) OpenChat() *ChatSession {
	return &ChatSession{gw: g}
}

// Send delivers text and returns the model's reply. Calls on one session are
// serialized; a turn is added to the history only after its reply arrives, so
// a failed call leaves the history untouched.
func (s *ChatSession) Send(ctx context.Context, text string) (models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents := make([]*genai.Content, len(s.history), len(s.history)+2)
	copy(contents, s.history)
	contents = append(contents, client.UserText(text))

	raw, err := s.gw.generate(ctx, client.GenerateRequest{
		Operation:         OpChat,
		SystemInstruction: ChatPersona,
		Contents:          contents,
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	reply := trimReply(raw)
	s.history = append(contents, client.ModelText(reply))
	traffic.RecordSuccess(OpChat)

	return models.ChatMessage{ID: uuid.NewString(), Role: models.RoleModel, Text: reply}, nil
}

// Turns returns the number of user and model turns recorded.
func (s *ChatSession) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
