package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/scoreboard/internal/errors"
	"github.com/Proton-105/scoreboard/internal/health"
	"github.com/Proton-105/scoreboard/internal/i18n"
	"github.com/Proton-105/scoreboard/internal/idempotency"
	"github.com/Proton-105/scoreboard/internal/password"
	"github.com/Proton-105/scoreboard/internal/ranking"
	"github.com/Proton-105/scoreboard/internal/repository"
	"github.com/Proton-105/scoreboard/internal/score"
	"github.com/Proton-105/scoreboard/internal/user"
	"github.com/Proton-105/scoreboard/pkg/config"
	"github.com/Proton-105/scoreboard/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	handler http.Handler
	store   *repository.MemoryStore
	redis   *miniredis.Miniredis
}

type serverOption func(*config.ServerConfig)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryStore()

	hasher := password.NewHasher(config.PasswordConfig{
		Time: 1, MemoryKiB: 8 * 1024, Threads: 1, KeyLength: 32, SaltLength: 16, LegacySHA256: true,
	})

	translations, err := i18n.Load("es")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	checker := health.NewChecker(log, time.Second)
	checker.AddCheck("database", store)

	h := NewHandler(Deps{
		Users:       user.NewService(store, hasher, log),
		Scores:      score.NewService(store, 10, log),
		Ranking:     ranking.NewService(store.Users(), 10, log),
		Errors:      errors.NewHandler(log, false),
		I18n:        translations,
		Health:      checker,
		Idempotency: idempotency.NewManager(idempotency.NewRedisStore(rdb, log), time.Hour, time.Minute, log),
		Log:         log,
	})

	cfg := config.ServerConfig{CORSOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testServer{handler: NewRouter(cfg, h, log), store: store, redis: mr}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func (s *testServer) register(t *testing.T, username, pw string) int64 {
	t.Helper()

	w, body := s.do(t, http.MethodPost, "/api/register", gin.H{"username": username, "password": pw})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(body["user"].(map[string]any)["id"].(float64))
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodPost, "/api/register", gin.H{"username": " alice ", "password": "p1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["success"])

	u := body["user"].(map[string]any)
	assert.Equal(t, map[string]any{
		"id":             float64(1),
		"username":       "alice",
		"best_score":     float64(0),
		"total_score":    float64(0),
		"level_unlocked": float64(1),
	}, u)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegister_Errors(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "alice", "p1")

	w, body := s.do(t, http.MethodPost, "/api/register", gin.H{"username": "alice", "password": "x"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Nombre de usuario ya existe", body["error"])
	assert.Equal(t, "E110", body["code"])

	w, body = s.do(t, http.MethodPost, "/api/register", gin.H{"username": "alice", "password": "x"}, "Accept-Language", "en-US,en;q=0.8")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Username already exists", body["error"])

	w, body = s.do(t, http.MethodPost, "/api/register", gin.H{"username": "bob"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Usuario y contraseña requeridos", body["error"])

	w, body = s.do(t, http.MethodPost, "/api/register", gin.H{"username": "   ", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Usuario y contraseña requeridos", body["error"])

	w, body = s.do(t, http.MethodPost, "/api/register", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "E100", body["code"])
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	id := s.register(t, "alice", "p1")

	w, body := s.do(t, http.MethodPost, "/api/login", gin.H{"username": "alice", "password": "p1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(id), body["user"].(map[string]any)["id"])

	w, body = s.do(t, http.MethodPost, "/api/login", gin.H{"username": "alice", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Contraseña incorrecta", body["error"])

	w, body = s.do(t, http.MethodPost, "/api/login", gin.H{"username": "carol", "password": "p1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Usuario no encontrado", body["error"])

	w, _ = s.do(t, http.MethodPost, "/api/login", gin.H{"password": "p1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScoreFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.register(t, "alice", "p1")

	var body map[string]any
	for _, sc := range []int{30, 50, 20} {
		var w *httptest.ResponseRecorder
		w, body = s.do(t, http.MethodPost, "/api/score", gin.H{"user_id": id, "score": sc})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	assert.Equal(t, false, body["updated"])
	assert.Equal(t, float64(50), body["best_score"])
	assert.Equal(t, float64(100), body["total_score"])
	assert.Equal(t, map[string]any{"1": float64(50)}, body["per_level_best"])
	assert.Equal(t, []any{map[string]any{"username": "alice", "best_score": float64(50)}}, body["ranking"])

	w, body := s.do(t, http.MethodPost, "/api/score", gin.H{"user_id": id, "score": 90, "level": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["updated"])
	assert.Equal(t, map[string]any{"1": float64(50), "2": float64(90)}, body["per_level_best"])

	w, body = s.do(t, http.MethodGet, "/api/users/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(190), body["user"].(map[string]any)["total_score"])
	assert.Equal(t, map[string]any{"1": float64(50), "2": float64(90)}, body["per_level_best"])
}

func TestScore_Errors(t *testing.T) {
	s := newTestServer(t)
	id := s.register(t, "alice", "p1")

	w, body := s.do(t, http.MethodPost, "/api/score", gin.H{"score": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "user_id y score requeridos", body["error"])

	w, _ = s.do(t, http.MethodPost, "/api/score", gin.H{"user_id": id})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = s.do(t, http.MethodPost, "/api/score", gin.H{"user_id": id, "score": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "E100", body["code"])

	w, _ = s.do(t, http.MethodPost, "/api/score", gin.H{"user_id": id, "score": 5, "level": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = s.do(t, http.MethodPost, "/api/score", gin.H{"user_id": id, "score": 5, "level": int64(3000000000)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "E100", body["code"])

	w, body = s.do(t, http.MethodPost, "/api/score", gin.H{"user_id": id, "score": int64(1000000001)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "E100", body["code"])

	w, _ = s.do(t, http.MethodPost, "/api/score", `{"user_id":"1","score":5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = s.do(t, http.MethodPost, "/api/score", gin.H{"user_id": 999, "score": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Usuario no encontrado", body["error"])

	w, _ = s.do(t, http.MethodGet, "/api/users/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/users/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = s.do(t, http.MethodGet, "/api/users/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["user"].(map[string]any)["total_score"])
	assert.Equal(t, map[string]any{}, body["per_level_best"])
}

func TestRanking(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/api/ranking", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"ranking":[]}`, w.Body.String())

	for i, name := range []string{"a", "b", "c"} {
		id := s.register(t, name, "p")
		s.do(t, http.MethodPost, "/api/score", gin.H{"user_id": id, "score": (i + 1) * 10})
	}

	w, _ = s.do(t, http.MethodGet, "/api/ranking", nil)
	assert.JSONEq(t, `{"success":true,"ranking":[
		{"username":"c","best_score":30},
		{"username":"b","best_score":20},
		{"username":"a","best_score":10}
	]}`, w.Body.String())
}

func TestScore_IdempotentReplay(t *testing.T) {
	s := newTestServer(t)
	id := s.register(t, "alice", "p1")

	first, firstBody := s.do(t, http.MethodPost, "/api/score", gin.H{"user_id": id, "score": 40}, "Idempotency-Key", "play-1")
	require.Equal(t, http.StatusOK, first.Code)

	replay, replayBody := s.do(t, http.MethodPost, "/api/score", gin.H{"user_id": id, "score": 40}, "Idempotency-Key", "play-1")
	require.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, firstBody, replayBody)

	_, body := s.do(t, http.MethodGet, "/api/users/1", nil)
	assert.Equal(t, float64(40), body["user"].(map[string]any)["total_score"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, body = s.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"database": "OK"}, body["checks"])

	w, _ = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestCORSAndRequestID(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/api/ranking", nil, "Origin", "http://game.example")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
}

func TestStaticPage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>game</h1>"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "js"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "js", "game.js"), []byte("var x = 1;"), 0o600))

	s := newTestServer(t, func(cfg *config.ServerConfig) { cfg.StaticDir = dir })

	w, _ := s.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "game")

	w, _ = s.do(t, http.MethodGet, "/static/js/game.js", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "var x")
}
