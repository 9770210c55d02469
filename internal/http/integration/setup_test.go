package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/raksha/internal/auth"
	"github.com/geocoder89/raksha/internal/cache"
	apphttp "github.com/geocoder89/raksha/internal/http"
	"github.com/geocoder89/raksha/internal/notifications"
	"github.com/geocoder89/raksha/internal/observability"
	"github.com/geocoder89/raksha/internal/repo/memory"
	"github.com/geocoder89/raksha/internal/sos"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// pushRecorder stands in for the Expo push endpoint.
type pushRecorder struct {
	mu      sync.Mutex
	batches [][]notifications.PushMessage
	srv     *httptest.Server
}

func newPushRecorder(t *testing.T) *pushRecorder {
	t.Helper()

	p := &pushRecorder{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []notifications.PushMessage
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			t.Errorf("push body: %v", err)
		}

		p.mu.Lock()
		p.batches = append(p.batches, batch)
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"status":"ok"}]}`))
	}))
	t.Cleanup(p.srv.Close)

	return p
}

func (p *pushRecorder) Batches() [][]notifications.PushMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]notifications.PushMessage(nil), p.batches...)
}

type testApp struct {
	router *gin.Engine
	tokens *auth.Manager
	users  *memory.UsersRepo
	zones  *memory.DangerZonesRepo
	push   *pushRecorder
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	users := memory.NewUsersRepo()
	zones := memory.NewDangerZonesRepo()
	tokens := auth.NewManager("test-secret-key", time.Hour)
	push := newPushRecorder(t)

	sender := notifications.NewProtectedPushSender(
		notifications.NewExpoClient(push.srv.URL, 2*time.Second),
		notifications.ProtectedPushConfig{Timeout: 2 * time.Second},
	)

	svc := sos.NewService(sos.Deps{
		Users: users,
		Push:  sender,
		Prom:  prom,
		Log:   logger,
	})

	router := apphttp.NewRouter(logger, apphttp.Deps{
		Env:       "test",
		Users:     users,
		Zones:     zones,
		ZoneCache: cache.New(time.Minute),
		Tokens:    tokens,
		SOS:       svc,
		Prom:      prom,
		Gatherer:  reg,
	})

	return &testApp{router: router, tokens: tokens, users: users, zones: zones, push: push}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

// register creates an account and returns its token.
func (a *testApp) register(t *testing.T, name, email string) string {
	t.Helper()

	w := a.do(t, http.MethodPost, "/api/users/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "s3cret-pass",
		"phone":    "+911234567890",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register %s: got %d %s", email, w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode: %v body=%s", err, w.Body.String())
	}
}

func msgOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Msg string `json:"msg"`
	}
	decode(t, w, &body)
	return body.Msg
}
