package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/kjstillabower/plants-doctor/internal/circuitbreaker"
	"github.com/kjstillabower/plants-doctor/internal/client"
	"github.com/kjstillabower/plants-doctor/internal/gateway"
	"github.com/kjstillabower/plants-doctor/internal/models"
	"github.com/kjstillabower/plants-doctor/internal/observability"
	"github.com/kjstillabower/plants-doctor/internal/validation"
)

// fakeClient replies per operation. When gate is set, calls block until it is closed.
type fakeClient struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	calls   map[string]int
	gate    chan struct{}
	entered chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{replies: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeClient) GenerateContent(ctx context.Context, req client.GenerateRequest) (string, error) {
	f.mu.Lock()
	f.calls[req.Operation]++
	gate, entered := f.gate, f.entered
	reply, err := f.replies[req.Operation], f.errs[req.Operation]
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return reply, err
}

func (f *fakeClient) ValidateAPIKey(ctx context.Context) error { return nil }

func (f *fakeClient) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func newAI(f *fakeClient) *gateway.Gateway {
	return gateway.New(f, nil, nil)
}

// A minimal PNG header is enough for MIME sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

const healthyJSON = `{"disease_name":"None","is_healthy":true,"description":"Healthy leaf."}`

func TestDetector_Diagnose(t *testing.T) {
	f := newFakeClient()
	f.replies[gateway.OpDiagnose] = healthyJSON
	got, err := NewDetector(newAI(f), 1<<20).Diagnose(context.Background(), "u1", pngBytes)
	if err != nil {
		t.Fatalf("Diagnose() error = %v", err)
	}
	if !got.IsHealthy {
		t.Errorf("Diagnose() = %+v", got)
	}
}

// TestDetector_Diagnose_InputErrors verifies bad input is rejected with no outbound call.
func TestDetector_Diagnose_InputErrors(t *testing.T) {
	tests := []struct {
		name  string
		image []byte
		max   int64
		msg   string
	}{
		{"no image", nil, 0, MsgNoImage},
		{"not an image", []byte("%PDF-1.4 hello"), 0, MsgUnsupportedImage},
		{"too large", pngBytes, 8, MsgImageTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeClient()
			_, err := NewDetector(newAI(f), tt.max).Diagnose(context.Background(), "u1", tt.image)
			if !errors.Is(err, validation.ErrInvalidRequest) {
				t.Errorf("Diagnose() error = %v, want ErrInvalidRequest", err)
			}
			if UserMessage(err) != tt.msg {
				t.Errorf("UserMessage() = %q, want %q", UserMessage(err), tt.msg)
			}
			if f.count(gateway.OpDiagnose) != 0 {
				t.Error("invalid input should not reach the gateway")
			}
		})
	}
}

// TestViews_ErrorMessages verifies each view maps invalid replies and transport errors
// to its own user-facing message.
func TestViews_ErrorMessages(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		op      string
		reply   string
		err     error
		wantMsg string
		wantIs  error
		call    func(ai gateway.AI) error
	}{
		{
			name: "diagnose invalid", op: gateway.OpDiagnose, reply: "nope",
			wantMsg: MsgDiagnoseInvalid, wantIs: gateway.ErrInvalidResponse,
			call: func(ai gateway.AI) error { _, err := NewDetector(ai, 0).Diagnose(ctx, "u", pngBytes); return err },
		},
		{
			name: "weather invalid", op: gateway.OpWeather, reply: "{}",
			wantMsg: MsgWeatherInvalid, wantIs: gateway.ErrInvalidResponse,
			call: func(ai gateway.AI) error { _, err := NewWeather(ai).Forecast(ctx, "u", 1, 2); return err },
		},
		{
			name: "learn invalid", op: gateway.OpLearn, reply: "[]",
			wantMsg: MsgLearnInvalid, wantIs: gateway.ErrInvalidResponse,
			call: func(ai gateway.AI) error { _, err := NewLearn(ai).Resources(ctx, "u"); return err },
		},
		{
			name: "weather transport", op: gateway.OpWeather, err: fmt.Errorf("%w: dial", client.ErrTransport),
			wantMsg: MsgUnknownError, wantIs: client.ErrTransport,
			call: func(ai gateway.AI) error { _, err := NewWeather(ai).Forecast(ctx, "u", 1, 2); return err },
		},
		{
			name: "learn rate limited", op: gateway.OpLearn, err: client.ErrRateLimited,
			wantMsg: MsgRateLimited, wantIs: client.ErrRateLimited,
			call: func(ai gateway.AI) error { _, err := NewLearn(ai).Resources(ctx, "u"); return err },
		},
		{
			name: "translate transport", op: gateway.OpTranslate, err: client.ErrUpstreamFailure,
			wantMsg: MsgUnknownError, wantIs: client.ErrUpstreamFailure,
			call: func(ai gateway.AI) error { _, err := NewDetector(ai, 0).Translate(ctx, "u", "hi", "es"); return err },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeClient()
			f.replies[tt.op] = tt.reply
			if tt.err != nil {
				f.errs[tt.op] = tt.err
			}
			err := tt.call(newAI(f))
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("error = %v, want %v", err, tt.wantIs)
			}
			if UserMessage(err) != tt.wantMsg {
				t.Errorf("UserMessage() = %q, want %q", UserMessage(err), tt.wantMsg)
			}
			if f.count(tt.op) != 1 {
				t.Errorf("calls = %d, want exactly 1", f.count(tt.op))
			}
		})
	}
}

func TestAIFailure_CircuitOpen(t *testing.T) {
	err := aiFailure(fmt.Errorf("weather: %w", circuitbreaker.ErrOpen), MsgWeatherInvalid)
	if UserMessage(err) != MsgUnavailable {
		t.Errorf("UserMessage() = %q, want %q", UserMessage(err), MsgUnavailable)
	}
}

func TestUserMessage_PlainError(t *testing.T) {
	if got := UserMessage(errors.New("boom")); got != MsgUnknownError {
		t.Errorf("UserMessage() = %q, want %q", got, MsgUnknownError)
	}
}

// TestWeather_BusyWhilePending verifies a second call from the same user is rejected
// while the first is pending, and other users are unaffected.
func TestWeather_BusyWhilePending(t *testing.T) {
	f := newFakeClient()
	f.errs[gateway.OpWeather] = client.ErrTransport
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 4)
	w := NewWeather(newAI(f))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = w.Forecast(context.Background(), "alice", 1, 2)
	}()
	<-f.entered

	_, err := w.Forecast(context.Background(), "alice", 1, 2)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("second Forecast() error = %v, want ErrBusy", err)
	}

	go func() { _, _ = w.Forecast(context.Background(), "bob", 1, 2) }()
	select {
	case <-f.entered:
	case <-time.After(time.Second):
		t.Fatal("another user's call should not be blocked")
	}

	close(f.gate)
	<-done
	if w.guard.pending() > 1 {
		t.Errorf("pending = %d after alice finished", w.guard.pending())
	}
}

func TestDetector_Translate(t *testing.T) {
	f := newFakeClient()
	f.replies[gateway.OpTranslate] = " Hola "
	d := NewDetector(newAI(f), 0)

	got, err := d.Translate(context.Background(), "u", "Hello", "es")
	if err != nil || got != "Hola" {
		t.Fatalf("Translate() = %q, %v", got, err)
	}
	if _, err := d.Translate(context.Background(), "u", "   ", "es"); !errors.Is(err, validation.ErrInvalidRequest) {
		t.Errorf("Translate(empty) error = %v, want ErrInvalidRequest", err)
	}
}

func TestLanguageName(t *testing.T) {
	tests := map[string]string{"es": "Spanish", "SW": "Swahili", "ta": "Tamil", "xx": "English", "": "English"}
	for code, want := range tests {
		if got := LanguageName(code); got != want {
			t.Errorf("LanguageName(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestLearn_Resources(t *testing.T) {
	items := make([]string, 5)
	for i := range items {
		items[i] = fmt.Sprintf(`{"title":"T%d","summary":"s","techniques":["a","b"],"source":"src"}`, i)
	}
	f := newFakeClient()
	f.replies[gateway.OpLearn] = "[" + strings.Join(items, ",") + "]"
	got, err := NewLearn(newAI(f)).Resources(context.Background(), "u")
	if err != nil || len(got) != 5 {
		t.Fatalf("Resources() = %v, %v", got, err)
	}
}

func TestCommunity_TranscriptOrdering(t *testing.T) {
	f := newFakeClient()
	f.replies[gateway.OpChat] = "Rotate your crops."
	c := NewCommunity(newAI(f))

	if tr := c.Transcript("u"); len(tr) != 1 || tr[0] != WelcomeMessage {
		t.Fatalf("initial transcript = %+v", tr)
	}

	reply, err := c.Send(context.Background(), "u", "  How do I stop pests?  ")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply.Role != models.RoleModel || reply.Text != "Rotate your crops." {
		t.Errorf("reply = %+v", reply)
	}

	tr := c.Transcript("u")
	if len(tr) != 3 {
		t.Fatalf("transcript len = %d, want 3", len(tr))
	}
	if tr[1].Role != models.RoleUser || tr[1].Text != "How do I stop pests?" {
		t.Errorf("transcript[1] = %+v", tr[1])
	}
	if tr[2].ID != reply.ID {
		t.Errorf("transcript[2] = %+v, want reply", tr[2])
	}
}

// TestCommunity_FailureAppendsApology verifies a failed turn shows the apology in the
// transcript without entering the model history.
func TestCommunity_FailureAppendsApology(t *testing.T) {
	f := newFakeClient()
	f.errs[gateway.OpChat] = client.ErrTransport
	c := NewCommunity(newAI(f))

	_, err := c.Send(context.Background(), "u", "hello")
	if !errors.Is(err, client.ErrTransport) || UserMessage(err) != MsgChatFailed {
		t.Fatalf("Send() error = %v (%q)", err, UserMessage(err))
	}
	tr := c.Transcript("u")
	last := tr[len(tr)-1]
	if last.Role != models.RoleModel || last.Text != MsgChatFailed {
		t.Errorf("last message = %+v, want apology", last)
	}

	c.mu.Lock()
	turns := c.conversations["u"].chat.Turns()
	c.mu.Unlock()
	if turns != 0 {
		t.Errorf("model history turns = %d, want 0", turns)
	}
}

func TestCommunity_EmptyMessage(t *testing.T) {
	f := newFakeClient()
	c := NewCommunity(newAI(f))
	if _, err := c.Send(context.Background(), "u", " \n "); !errors.Is(err, validation.ErrInvalidRequest) {
		t.Errorf("Send() error = %v, want ErrInvalidRequest", err)
	}
	if f.count(gateway.OpChat) != 0 {
		t.Error("empty message should not reach the gateway")
	}
}

func TestCommunity_SeparateUsersAndClose(t *testing.T) {
	f := newFakeClient()
	f.replies[gateway.OpChat] = "ok"
	c := NewCommunity(newAI(f))

	_, _ = c.Send(context.Background(), "alice", "hi")
	if len(c.Transcript("bob")) != 1 {
		t.Error("bob should only see the welcome message")
	}
	if c.Active() != 1 {
		t.Errorf("Active() = %d, want 1", c.Active())
	}
	c.Close("alice")
	c.Close("alice")
	if c.Active() != 0 {
		t.Errorf("Active() after Close = %d, want 0", c.Active())
	}
	if len(c.Transcript("alice")) != 1 {
		t.Error("closed conversation should reset to the welcome message")
	}
}

func chatGauge(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := observability.ChatSessionsActive.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetGauge().GetValue()
}

func TestCommunity_CloseIdle(t *testing.T) {
	f := newFakeClient()
	f.replies[gateway.OpChat] = "ok"
	c := NewCommunity(newAI(f))
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	before := chatGauge(t)

	for i := 0; i < 100; i++ {
		if _, err := c.Send(context.Background(), fmt.Sprintf("token-%d", i), "hi"); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	now = now.Add(30 * time.Minute)
	if _, err := c.Send(context.Background(), "token-0", "still here"); err != nil {
		t.Fatal(err)
	}
	if got := chatGauge(t) - before; got != 100 {
		t.Errorf("gauge delta = %v, want 100", got)
	}

	now = now.Add(45 * time.Minute)
	if n := c.CloseIdle(time.Hour); n != 99 {
		t.Errorf("CloseIdle() = %d, want 99", n)
	}
	if c.Active() != 1 {
		t.Errorf("Active() = %d, want 1", c.Active())
	}
	if got := chatGauge(t) - before; got != 1 {
		t.Errorf("gauge delta after sweep = %v, want 1", got)
	}
	if len(c.Transcript("token-0")) != 5 {
		t.Error("recently used conversation should keep its transcript")
	}
	c.Close("token-0")
}

func TestCommunity_CloseIdleKeepsTurnInFlight(t *testing.T) {
	f := newFakeClient()
	f.replies[gateway.OpChat] = "ok"
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 1)
	c := NewCommunity(newAI(f))
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	var clock sync.Mutex
	c.now = func() time.Time { clock.Lock(); defer clock.Unlock(); return now }

	done := make(chan struct{})
	go func() {
		_, _ = c.Send(context.Background(), "slow", "hi")
		close(done)
	}()
	<-f.entered
	clock.Lock()
	now = now.Add(2 * time.Hour)
	clock.Unlock()
	if n := c.CloseIdle(time.Hour); n != 0 {
		t.Errorf("CloseIdle() = %d, want 0 while a turn is pending", n)
	}
	close(f.gate)
	<-done
	c.Close("slow")
}

func TestInflightGuard(t *testing.T) {
	g := newInflightGuard()
	if !g.acquire("u/weather") {
		t.Fatal("first acquire should succeed")
	}
	if g.acquire("u/weather") {
		t.Error("second acquire should fail while pending")
	}
	if !g.acquire("u/learn") {
		t.Error("different view should not be blocked")
	}
	g.release("u/weather")
	if !g.acquire("u/weather") {
		t.Error("acquire after release should succeed")
	}
}
