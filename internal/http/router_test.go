package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/cicero/internal/auth"
	"github.com/redmonkez12/cicero/internal/config"
	"github.com/redmonkez12/cicero/internal/database/dbtest"
	"github.com/redmonkez12/cicero/internal/generation"
	"github.com/redmonkez12/cicero/internal/logging"
	"github.com/redmonkez12/cicero/internal/metrics"
	"github.com/redmonkez12/cicero/internal/ratelimit"
	"github.com/redmonkez12/cicero/internal/reset"
	"github.com/redmonkez12/cicero/internal/trip"
	"github.com/redmonkez12/cicero/internal/user"
)

const (
	testOrigin   = "http://localhost:3000"
	testPassword = "Tr1p-planner!"
)

type scriptedStream struct {
	fragments []string
	pos       int
}

func (s *scriptedStream) Next() bool {
	if s.pos >= len(s.fragments) {
		return false
	}
	s.pos++
	return true
}

func (s *scriptedStream) Fragment() string { return s.fragments[s.pos-1] }
func (s *scriptedStream) Err() error       { return nil }
func (s *scriptedStream) Close() error     { return nil }

type scriptedCompleter struct {
	fragments []string
}

func (c *scriptedCompleter) StreamChat(context.Context, []generation.Message) (generation.Stream, error) {
	return &scriptedStream{fragments: c.fragments}, nil
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db := dbtest.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	sessions, err := auth.NewPasetoService(bytes.Repeat([]byte{0x11}, 32))
	require.NoError(t, err)
	resets, err := reset.NewService(reset.NewSQLStore(db), reset.Config{
		Secret:  bytes.Repeat([]byte{0x22}, 32),
		Metrics: collector,
	})
	require.NoError(t, err)

	logger := logging.Discard()
	authService := auth.NewService(user.NewRepository(db), sessions, resets, nil, nil, logger, time.Hour)
	trips := trip.NewRepository(db)
	pipeline := generation.NewPipeline(
		&scriptedCompleter{fragments: []string{"Day 1: ", "Fushimi Inari."}},
		trips,
		generation.Config{Metrics: collector, Logger: logger},
	)

	cfg := &config.Config{Server: config.ServerConfig{TrustedOrigins: []string{testOrigin}}}
	return NewRouter(cfg, Routes{
		Auth:              auth.NewHandler(authService, ratelimit.NewLimiter(rdb), false, time.Hour, testOrigin),
		AuthMiddleware:    auth.NewMiddleware(sessions),
		Trips:             trip.NewHandler(trips),
		Generation:        generation.NewHandler(pipeline),
		GenerationLimiter: ratelimit.NewUserLimiter(2, auth.UserKey),
		Metrics:           metrics.Handler(reg),
		DB:                db,
	}, logger)
}

func do(t *testing.T, router http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, router http.Handler) string {
	t.Helper()

	rec := do(t, router, http.MethodPost, "/auth/register", "", map[string]string{
		"name":         "Ada",
		"email":        "ada@example.com",
		"password":     testPassword,
		"confirmation": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sess auth.SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sess))
	require.NotEmpty(t, sess.AccessToken)
	return sess.AccessToken
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestHealth_DatabaseDown(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(failingPinger{})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t)

	for _, tc := range []struct{ method, target string }{
		{http.MethodGet, "/auth/me"},
		{http.MethodGet, "/trips"},
		{http.MethodGet, "/trips/1"},
		{http.MethodGet, "/generate/options"},
		{http.MethodPost, "/generate"},
	} {
		rec := do(t, router, tc.method, tc.target, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.target)
	}
}

func TestGenerateThenListTrips(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router)

	rec := do(t, router, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ada@example.com"`)

	rec = do(t, router, http.MethodGet, "/generate/options", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Four weeks")

	rec = do(t, router, http.MethodPost, "/generate", token, generation.Params{
		Destination: "Kyoto",
		Month:       "April",
		Duration:    "One week",
		Interests:   []string{"History, Culture and Arts"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	stream := rec.Body.String()
	assert.Contains(t, stream, "event: fragment\ndata: {\"text\":\"Day 1: \"}\n\n")
	assert.Contains(t, stream, "event: done\ndata: {\"trip_id\":1,\"saved\":true}\n\n")

	rec = do(t, router, http.MethodGet, "/trips", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list trip.ListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Trips, 1)
	assert.Equal(t, "Kyoto", list.Trips[0].Destination)

	rec = do(t, router, http.MethodGet, "/trips/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"travel_plan":"Day 1: Fushimi Inari."`)

	rec = do(t, router, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cicero_generations_total{outcome="completed"} 1`)
}

func TestGenerateIsRateLimitedPerUser(t *testing.T) {
	router := newTestRouter(t)
	token := registerUser(t, router)

	// Invalid params still count against the bucket.
	for i := 0; i < 2; i++ {
		rec := do(t, router, http.MethodPost, "/generate", token, generation.Params{})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec := do(t, router, http.MethodPost, "/generate", token, generation.Params{})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", newTestRouter(t), time.Second, time.Second, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := "http://" + ln.Addr().String()

	errs := make(chan error, 1)
	go func() { errs <- srv.Serve(ln) }()

	resp, err := http.Get(addr + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-errs)

	_, err = http.Get(addr + "/health")
	assert.Error(t, err)
}
