package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/plants-doctor/internal/auth"
	"github.com/kjstillabower/plants-doctor/internal/client"
	"github.com/kjstillabower/plants-doctor/internal/forum"
	"github.com/kjstillabower/plants-doctor/internal/gateway"
	"github.com/kjstillabower/plants-doctor/internal/repository"
	"github.com/kjstillabower/plants-doctor/internal/scheduler"
	"github.com/kjstillabower/plants-doctor/internal/service"
	"github.com/kjstillabower/plants-doctor/internal/session"
)

// fakeAI answers generateContent calls per gateway operation.
type fakeAI struct {
	mu          sync.Mutex
	replies     map[string]string
	errs        map[string]error
	calls       map[string]int
	validateErr error
}

func newFakeAI() *fakeAI {
	return &fakeAI{replies: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeAI) GenerateContent(ctx context.Context, req client.GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.Operation]++
	return f.replies[req.Operation], f.errs[req.Operation]
}

func (f *fakeAI) ValidateAPIKey(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateErr
}

func (f *fakeAI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAI) set(op, reply string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[op] = reply
	f.errs[op] = err
}

const diagnosisJSON = `{"disease_name":"Early Blight","is_healthy":false,"description":"Fungal leaf spots.",
"causes":["Alternaria solani"],"treatment_recommendations":{"organic":["Neem oil"],"chemical":["Chlorothalonil"]}}`

const weatherJSON = `{"current":{"temp_c":28.5,"condition":"Sunny","humidity":60,"wind_kph":12,"precip_mm":0,"uv_index":7},
"forecast":[
 {"date":"2024-05-02","day":"Thursday","max_temp_c":31,"min_temp_c":22,"condition":"Sunny","chance_of_rain":10},
 {"date":"2024-05-03","day":"Friday","max_temp_c":30,"min_temp_c":21,"condition":"Cloudy","chance_of_rain":40},
 {"date":"2024-05-04","day":"Saturday","max_temp_c":27,"min_temp_c":20,"condition":"Rain","chance_of_rain":80}],
"soil":{"temperature_c":24,"moisture_percent":35}}`

func learningJSON(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"title":"Technique %d","summary":"s","techniques":["step"],"source":"Agro Journal"}`, i+1)
	}
	return "[" + strings.Join(items, ",") + "]"
}

// A minimal PNG header is enough for MIME sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type testEnv struct {
	ai        *fakeAI
	handler   *Handler
	router    *mux.Router
	community *service.Community
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ai := newFakeAI()
	gw := gateway.New(ai, nil, nil)
	manager := session.NewManager(session.NewInMemoryStore(), time.Hour, 10*time.Minute)
	authSvc := auth.NewService(manager, "123456", nil, nil)
	community := service.NewCommunity(gw)
	authSvc.OnSessionEnd(community.Close)

	h := NewHandler(Services{
		Auth:      authSvc,
		Detector:  service.NewDetector(gw, 1<<20),
		Weather:   service.NewWeather(gw),
		Learn:     service.NewLearn(gw),
		Community: community,
		Scheduler: scheduler.NewService(repository.NewMemoryEventRepository(), nil),
		Forum:     forum.NewService(repository.NewMemoryPostRepository(), nil),
	}, ai, nil, zap.NewNop(), 1<<20)
	h.now = func() time.Time { return time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC) }

	return &testEnv{ai: ai, handler: h, router: NewRouter(h, RouterOptions{}), community: community}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// login runs the email sign-in flow and returns the session token.
func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "pw"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	var pending pendingResponse
	decode(t, w, &pending)

	w = e.do(t, http.MethodPost, "/auth/verify", "", map[string]string{"pendingId": pending.PendingID, "code": "123456"})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body %s", w.Code, w.Body.String())
	}
	var sess sessionResponse
	decode(t, w, &sess)
	return sess.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

// expectError asserts status, code and message of an error response.
func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code, message string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	var env errorEnvelope
	decode(t, w, &env)
	if env.Error.Code != code {
		t.Errorf("error.code = %q, want %q", env.Error.Code, code)
	}
	if message != "" && env.Error.Message != message {
		t.Errorf("error.message = %q, want %q", env.Error.Message, message)
	}
	if env.Error.RequestID == "" {
		t.Error("error.requestId is empty")
	}
}
