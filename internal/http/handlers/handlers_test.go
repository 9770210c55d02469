package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/raksha/internal/cache"
	"github.com/geocoder89/raksha/internal/domain/dangerzone"
	"github.com/geocoder89/raksha/internal/domain/user"
	"github.com/geocoder89/raksha/internal/http/handlers"
	"github.com/geocoder89/raksha/internal/http/middlewares"
	"github.com/geocoder89/raksha/internal/security"
	"github.com/geocoder89/raksha/internal/sos"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers struct {
	createFn       func(ctx context.Context, u user.User) error
	getByIDFn      func(ctx context.Context, id string) (user.User, error)
	getByEmailFn   func(ctx context.Context, email string) (user.User, error)
	mutateFn       func(ctx context.Context, id string, fn func(*user.User) error) (user.User, error)
	setPushTokenFn func(ctx context.Context, id, token string) error
}

func (f *fakeUsers) Create(ctx context.Context, u user.User) error {
	if f.createFn != nil {
		return f.createFn(ctx, u)
	}
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (user.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsers) Mutate(ctx context.Context, id string, fn func(*user.User) error) (user.User, error) {
	if f.mutateFn != nil {
		return f.mutateFn(ctx, id, fn)
	}
	return user.User{}, user.ErrNotFound
}

func (f *fakeUsers) SetPushToken(ctx context.Context, id, token string) error {
	if f.setPushTokenFn != nil {
		return f.setPushTokenFn(ctx, id, token)
	}
	return nil
}

// mutateOn applies fn to a copy of u, as a store would.
func mutateOn(u *user.User) func(ctx context.Context, id string, fn func(*user.User) error) (user.User, error) {
	return func(ctx context.Context, id string, fn func(*user.User) error) (user.User, error) {
		if id != u.ID {
			return user.User{}, user.ErrNotFound
		}
		next := *u
		next.TrustedContacts = u.Contacts()
		if err := fn(&next); err != nil {
			return user.User{}, err
		}
		*u = next
		return next, nil
	}
}

type fakeTokens struct{}

func (fakeTokens) GenerateToken(userID string) (string, error) {
	return "token-for-" + userID, nil
}

type fakeSOS struct {
	calls []string
	err   error
}

func (f *fakeSOS) Trigger(ctx context.Context, userID string) (sos.Plan, error) {
	f.calls = append(f.calls, userID)
	return sos.Plan{}, f.err
}

// setupRouter mounts one handler, optionally behind a fake authenticated caller.
func setupRouter(method, path, userID string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	if userID != "" {
		r.Use(func(c *gin.Context) {
			c.Set(middlewares.CtxUserID, userID)
			c.Next()
		})
	}

	r.Handle(method, path, h)

	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func msgOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v body=%s", err, w.Body.String())
	}
	return body.Msg
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		users      *fakeUsers
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "success",
			body:       `{"name":"Asha","email":"asha@example.com","password":"secret","phone":"+91"}`,
			users:      &fakeUsers{},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing_fields",
			body:       `{"name":"Asha"}`,
			users:      &fakeUsers{},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Invalid request body",
		},
		{
			name:       "password_over_bcrypt_limit",
			body:       `{"name":"Asha","email":"asha@example.com","password":"` + strings.Repeat("p", 73) + `","phone":"+91"}`,
			users:      &fakeUsers{},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "Password must be at most 72 bytes",
		},
		{
			name:       "password_at_bcrypt_limit",
			body:       `{"name":"Asha","email":"asha@example.com","password":"` + strings.Repeat("p", 72) + `","phone":"+91"}`,
			users:      &fakeUsers{},
			wantStatus: http.StatusOK,
		},
		{
			name: "existing_email",
			body: `{"name":"Asha","email":"asha@example.com","password":"secret","phone":"+91"}`,
			users: &fakeUsers{
				getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
					return user.User{ID: "existing"}, nil
				},
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "User already exists",
		},
		{
			name: "lost_race_on_create",
			body: `{"name":"Asha","email":"asha@example.com","password":"secret","phone":"+91"}`,
			users: &fakeUsers{
				createFn: func(ctx context.Context, u user.User) error { return user.ErrEmailTaken },
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "User already exists",
		},
		{
			name: "store_failure",
			body: `{"name":"Asha","email":"asha@example.com","password":"secret","phone":"+91"}`,
			users: &fakeUsers{
				createFn: func(ctx context.Context, u user.User) error { return errors.New("db down") },
			},
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Server Error",
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewUsersHandler(tt.users, fakeTokens{})
			r := setupRouter(http.MethodPost, "/api/users/register", "", h.Register)

			w := doJSON(r, http.MethodPost, "/api/users/register", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantMsg != "" && msgOf(t, w) != tt.wantMsg {
				t.Fatalf("got msg %q, want %q", msgOf(t, w), tt.wantMsg)
			}
			if tt.wantStatus == http.StatusOK {
				var resp struct {
					Token string `json:"token"`
				}
				_ = json.Unmarshal(w.Body.Bytes(), &resp)
				if resp.Token == "" {
					t.Fatalf("expected token, body=%s", w.Body.String())
				}
			}
		})
	}
}

func TestLoginHandler_IdenticalFailures(t *testing.T) {
	hash, err := security.HashPassword("right")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	users := &fakeUsers{
		getByEmailFn: func(ctx context.Context, email string) (user.User, error) {
			if email == "asha@example.com" {
				return user.User{ID: "u1", PasswordHash: hash}, nil
			}
			return user.User{}, user.ErrNotFound
		},
	}

	h := handlers.NewUsersHandler(users, fakeTokens{})
	r := setupRouter(http.MethodPost, "/api/users/login", "", h.Login)

	wrongPass := doJSON(r, http.MethodPost, "/api/users/login", `{"email":"asha@example.com","password":"wrong"}`)
	unknown := doJSON(r, http.MethodPost, "/api/users/login", `{"email":"nobody@example.com","password":"right"}`)

	if wrongPass.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("got statuses %d and %d, want 401", wrongPass.Code, unknown.Code)
	}
	if wrongPass.Body.String() != unknown.Body.String() {
		t.Fatalf("bodies differ: %s vs %s", wrongPass.Body.String(), unknown.Body.String())
	}
	if msgOf(t, wrongPass) != "Invalid Credentials" {
		t.Fatalf("unexpected msg %q", msgOf(t, wrongPass))
	}

	ok := doJSON(r, http.MethodPost, "/api/users/login", `{"email":"asha@example.com","password":"right"}`)
	if ok.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", ok.Code, ok.Body.String())
	}
}

func TestUpdateLocationHandler(t *testing.T) {
	u := user.New(user.RegisterRequest{Name: "Asha", Email: "a@example.com"}, "h", time.Now())
	users := &fakeUsers{mutateFn: mutateOn(&u)}

	h := handlers.NewSafetyHandler(users, &fakeSOS{})

	r := setupRouter(http.MethodPut, "/location", u.ID, h.UpdateLocation)
	w := doJSON(r, http.MethodPut, "/location", `{"latitude":16.34,"longitude":80.44}`)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if msgOf(t, w) != "Location updated successfully" {
		t.Fatalf("unexpected msg %q", msgOf(t, w))
	}
	if u.CurrentLocation == nil || u.CurrentLocation.Latitude != 16.34 {
		t.Fatalf("location not stored: %+v", u.CurrentLocation)
	}

	missing := doJSON(r, http.MethodPut, "/location", `{"latitude":16.34}`)
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("got status %d for missing longitude, want 400", missing.Code)
	}

	ghost := setupRouter(http.MethodPut, "/location", "ghost", h.UpdateLocation)
	w = doJSON(ghost, http.MethodPut, "/location", `{"latitude":0,"longitude":0}`)
	if w.Code != http.StatusNotFound || msgOf(t, w) != "User not found" {
		t.Fatalf("got %d %s, want 404 User not found", w.Code, w.Body.String())
	}
}

func TestSOSHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "ok", wantStatus: http.StatusOK, wantMsg: "SOS alert triggered successfully. Trusted contacts notified (simulated SMS/Email, and push if app user)."},
		{name: "unknown_user", err: user.ErrNotFound, wantStatus: http.StatusNotFound, wantMsg: "User not found"},
		{name: "store_failure", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantMsg: "Server Error"},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			trigger := &fakeSOS{err: tt.err}
			h := handlers.NewSafetyHandler(&fakeUsers{}, trigger)

			r := setupRouter(http.MethodPost, "/sos", "u1", h.SOS)
			w := doJSON(r, http.MethodPost, "/sos", "")

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}
			if msgOf(t, w) != tt.wantMsg {
				t.Fatalf("got msg %q, want %q", msgOf(t, w), tt.wantMsg)
			}
			if len(trigger.calls) != 1 || trigger.calls[0] != "u1" {
				t.Fatalf("unexpected trigger calls: %v", trigger.calls)
			}
		})
	}
}

func TestContactsHandler_CRUD(t *testing.T) {
	u := user.New(user.RegisterRequest{Name: "Asha", Email: "a@example.com"}, "h", time.Now())
	users := &fakeUsers{
		mutateFn:  mutateOn(&u),
		getByIDFn: func(ctx context.Context, id string) (user.User, error) { return u, nil },
	}

	h := handlers.NewContactsHandler(users)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middlewares.CtxUserID, u.ID); c.Next() })
	r.GET("/contacts", h.List)
	r.POST("/contacts", h.Add)
	r.PUT("/contacts/:id", h.Update)
	r.DELETE("/contacts/:id", h.Delete)

	empty := doJSON(r, http.MethodGet, "/contacts", "")
	if empty.Code != http.StatusOK || empty.Body.String() != "[]" {
		t.Fatalf("got %d %s, want 200 []", empty.Code, empty.Body.String())
	}

	bad := doJSON(r, http.MethodPost, "/contacts", `{"name":"Ghost"}`)
	if bad.Code != http.StatusBadRequest || msgOf(t, bad) != "Name and at least one of Phone or Email are required for trusted contact." {
		t.Fatalf("got %d %s", bad.Code, bad.Body.String())
	}

	for _, body := range []string{`{"name":"A","phone":"+1"}`, `{"name":"B","email":"b@example.com"}`, `{"name":"C","phone":"+3"}`} {
		w := doJSON(r, http.MethodPost, "/contacts", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("add %s: got %d %s", body, w.Code, w.Body.String())
		}
	}

	ids := make([]string, 0, 3)
	for _, c := range u.TrustedContacts {
		ids = append(ids, c.ID)
	}

	badUpdate := doJSON(r, http.MethodPut, "/contacts/"+ids[0], `{"name":"A"}`)
	if badUpdate.Code != http.StatusBadRequest || msgOf(t, badUpdate) != "Name and at least one of Phone or Email are required for trusted contact update." {
		t.Fatalf("got %d %s", badUpdate.Code, badUpdate.Body.String())
	}

	missing := doJSON(r, http.MethodPut, "/contacts/nope", `{"name":"X","phone":"1"}`)
	if missing.Code != http.StatusNotFound || msgOf(t, missing) != "Trusted contact not found." {
		t.Fatalf("got %d %s", missing.Code, missing.Body.String())
	}

	upd := doJSON(r, http.MethodPut, "/contacts/"+ids[2], `{"name":"Cee","email":"c@example.com"}`)
	if upd.Code != http.StatusOK {
		t.Fatalf("update: got %d %s", upd.Code, upd.Body.String())
	}

	del := doJSON(r, http.MethodDelete, "/contacts/"+ids[1], "")
	if del.Code != http.StatusOK {
		t.Fatalf("delete: got %d %s", del.Code, del.Body.String())
	}

	var resp struct {
		Msg             string                `json:"msg"`
		TrustedContacts []user.TrustedContact `json:"trustedContacts"`
	}
	if err := json.Unmarshal(del.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Msg != "Trusted contact removed successfully." {
		t.Fatalf("unexpected msg %q", resp.Msg)
	}
	if len(resp.TrustedContacts) != 2 || resp.TrustedContacts[0].ID != ids[0] || resp.TrustedContacts[1].ID != ids[2] {
		t.Fatalf("unexpected remaining contacts: %+v", resp.TrustedContacts)
	}
	if resp.TrustedContacts[1].Name != "Cee" || resp.TrustedContacts[1].Phone != "" {
		t.Fatalf("update not applied: %+v", resp.TrustedContacts[1])
	}
}

type fakeZones struct {
	createFn func(ctx context.Context, z dangerzone.Zone) error
	listFn   func(ctx context.Context) ([]dangerzone.Zone, error)
	lists    int
}

func (f *fakeZones) Create(ctx context.Context, z dangerzone.Zone) error {
	if f.createFn != nil {
		return f.createFn(ctx, z)
	}
	return nil
}

func (f *fakeZones) ListActive(ctx context.Context) ([]dangerzone.Zone, error) {
	f.lists++
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

func TestDangerZonesHandler_ListUsesCache(t *testing.T) {
	zones := &fakeZones{}
	h := handlers.NewDangerZonesHandler(zones, cache.New(time.Minute))

	r := gin.New()
	r.GET("/dangerzones", h.List)
	r.POST("/dangerzones/add-test-zone", h.SeedTestZone)

	first := doJSON(r, http.MethodGet, "/dangerzones", "")
	second := doJSON(r, http.MethodGet, "/dangerzones", "")

	if first.Code != http.StatusOK || first.Body.String() != "[]" {
		t.Fatalf("got %d %s, want 200 []", first.Code, first.Body.String())
	}
	if second.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second list should be served from cache")
	}
	if zones.lists != 1 {
		t.Fatalf("got %d store lists, want 1", zones.lists)
	}

	seed := doJSON(r, http.MethodPost, "/dangerzones/add-test-zone", "")
	if seed.Code != http.StatusOK || msgOf(t, seed) != "Test Danger Zone added successfully!" {
		t.Fatalf("seed: got %d %s", seed.Code, seed.Body.String())
	}

	_ = doJSON(r, http.MethodGet, "/dangerzones", "")
	if zones.lists != 2 {
		t.Fatalf("seed should invalidate the cache, got %d store lists", zones.lists)
	}
}

func TestDangerZonesHandler_SlowListDoesNotCacheAcrossSeed(t *testing.T) {
	var (
		mu     sync.Mutex
		stored []dangerzone.Zone
	)

	entered := make(chan struct{})
	release := make(chan struct{})
	first := true

	zones := &fakeZones{
		createFn: func(ctx context.Context, z dangerzone.Zone) error {
			mu.Lock()
			defer mu.Unlock()
			stored = append(stored, z)
			return nil
		},
		listFn: func(ctx context.Context) ([]dangerzone.Zone, error) {
			mu.Lock()
			snapshot := append([]dangerzone.Zone(nil), stored...)
			block := first
			first = false
			mu.Unlock()

			if block {
				close(entered)
				<-release
			}
			return snapshot, nil
		},
	}

	h := handlers.NewDangerZonesHandler(zones, cache.New(time.Minute))

	r := gin.New()
	r.GET("/dangerzones", h.List)
	r.POST("/dangerzones/add-test-zone", h.SeedTestZone)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- doJSON(r, http.MethodGet, "/dangerzones", "")
	}()

	<-entered

	seed := doJSON(r, http.MethodPost, "/dangerzones/add-test-zone", "")
	if seed.Code != http.StatusOK {
		t.Fatalf("seed: got %d %s", seed.Code, seed.Body.String())
	}

	close(release)
	if slow := <-done; slow.Body.String() != "[]" {
		t.Fatalf("slow list should answer its own snapshot, got %s", slow.Body.String())
	}

	next := doJSON(r, http.MethodGet, "/dangerzones", "")
	if next.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("stale pre-seed list was cached")
	}

	var got []dangerzone.Zone
	if err := json.Unmarshal(next.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v body=%s", err, next.Body.String())
	}
	if len(got) != 1 {
		t.Fatalf("got %d zones after seed, want 1", len(got))
	}
}

func TestDangerZonesHandler_Seed(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		createErr  error
		wantStatus int
		wantMsg    string
	}{
		{name: "defaults", wantStatus: http.StatusOK, wantMsg: "Test Danger Zone added successfully!"},
		{name: "custom", body: `{"name":"Market","severity":"low"}`, wantStatus: http.StatusOK, wantMsg: "Test Danger Zone added successfully!"},
		{name: "duplicate", createErr: dangerzone.ErrNameTaken, wantStatus: http.StatusBadRequest, wantMsg: "Danger zone with this name already exists."},
		{name: "bad_severity", body: `{"severity":"extreme"}`, wantStatus: http.StatusBadRequest, wantMsg: "Severity must be one of low, medium, high."},
		{name: "store_failure", createErr: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantMsg: "Server Error"},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			var stored dangerzone.Zone
			zones := &fakeZones{createFn: func(ctx context.Context, z dangerzone.Zone) error {
				stored = z
				return tt.createErr
			}}

			h := handlers.NewDangerZonesHandler(zones, nil)
			r := setupRouter(http.MethodPost, "/seed", "", h.SeedTestZone)

			w := doJSON(r, http.MethodPost, "/seed", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if msgOf(t, w) != tt.wantMsg {
				t.Fatalf("got msg %q, want %q", msgOf(t, w), tt.wantMsg)
			}
			if tt.wantStatus == http.StatusOK && (!stored.IsActive || len(stored.Coordinates) != 5) {
				t.Fatalf("unexpected stored zone: %+v", stored)
			}
		})
	}
}

func TestNotificationsHandler_RegisterToken(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		storeErr   error
		wantStatus int
		wantMsg    string
	}{
		{name: "ok", body: `{"token":"ExponentPushToken[x]"}`, wantStatus: http.StatusOK, wantMsg: "Push token registered successfully."},
		{name: "missing", body: `{}`, wantStatus: http.StatusBadRequest, wantMsg: "Push token is required."},
		{name: "no_body", wantStatus: http.StatusBadRequest, wantMsg: "Push token is required."},
		{name: "unknown_user", body: `{"token":"t"}`, storeErr: user.ErrNotFound, wantStatus: http.StatusNotFound, wantMsg: "User not found."},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			var gotToken string
			users := &fakeUsers{setPushTokenFn: func(ctx context.Context, id, token string) error {
				gotToken = token
				return tt.storeErr
			}}

			h := handlers.NewNotificationsHandler(users)
			r := setupRouter(http.MethodPost, "/token", "u1", h.RegisterToken)

			w := doJSON(r, http.MethodPost, "/token", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if msgOf(t, w) != tt.wantMsg {
				t.Fatalf("got msg %q, want %q", msgOf(t, w), tt.wantMsg)
			}
			if tt.name == "ok" && gotToken != "ExponentPushToken[x]" {
				t.Fatalf("token not passed to store: %q", gotToken)
			}
		})
	}
}

func TestHealthHandler_Readyz(t *testing.T) {
	h := handlers.NewHealthHandler(map[string]handlers.PingFunc{
		"store": func(ctx context.Context) error { return nil },
	})
	r := setupRouter(http.MethodGet, "/readyz", "", h.Readyz)

	if w := doJSON(r, http.MethodGet, "/readyz", ""); w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}

	down := handlers.NewHealthHandler(map[string]handlers.PingFunc{
		"redis": func(ctx context.Context) error { return errors.New("refused") },
	})
	r = setupRouter(http.MethodGet, "/readyz", "", down.Readyz)

	if w := doJSON(r, http.MethodGet, "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", w.Code)
	}
}
