package user

import (
	"bytes"
	"context"
	stdErrors "errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/scoreboard/internal/domain"
	"github.com/Proton-105/scoreboard/internal/errors"
	"github.com/Proton-105/scoreboard/internal/password"
	"github.com/Proton-105/scoreboard/internal/repository"
	"github.com/Proton-105/scoreboard/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testHasher() *password.Hasher {
	return password.NewHasher(config.PasswordConfig{
		Time:         1,
		MemoryKiB:    8 * 1024,
		Threads:      1,
		KeyLength:    32,
		SaltLength:   16,
		LegacySHA256: true,
	})
}

func newTestService() (*Service, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	return NewService(store, testHasher(), testLogger()), store
}

func requireKind(t *testing.T, err error, kind errors.Kind) *errors.AppError {
	t.Helper()

	var appErr *errors.AppError
	require.True(t, stdErrors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, kind, appErr.Kind)
	return appErr
}

func TestService_RegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	u, err := svc.Register(ctx, "  alice ", " p1 ")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, int64(1), u.ID)
	assert.Zero(t, u.BestScore)
	assert.Zero(t, u.TotalScore)
	assert.Equal(t, 1, u.LevelUnlocked)
	assert.NotContains(t, u.PasswordHash, "p1")

	logged, err := svc.Authenticate(ctx, "alice", "p1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)

	logged, err = svc.Authenticate(ctx, " alice", "p1 ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _ := newTestService()

	for _, tc := range []struct{ username, password string }{
		{"", "p"},
		{"alice", ""},
		{"   ", "p"},
		{"alice", "   "},
	} {
		_, err := svc.Register(context.Background(), tc.username, tc.password)
		appErr := requireKind(t, err, errors.KindInvalidInput)
		assert.Equal(t, errors.MsgMissingCredentials, appErr.UserMessage)
	}
}

func TestService_RegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.Register(ctx, "alice", "p1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other")
	appErr := requireKind(t, err, errors.KindDuplicateUsername)
	assert.Equal(t, 409, appErr.StatusCode())
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestService_AuthenticateFailures(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.Register(ctx, "alice", "p1")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "bob", "p1")
	appErr := requireKind(t, err, errors.KindNotFound)
	assert.Equal(t, 404, appErr.StatusCode())

	_, err = svc.Authenticate(ctx, "alice", "p2")
	appErr = requireKind(t, err, errors.KindBadCredential)
	assert.Equal(t, 401, appErr.StatusCode())

	_, err = svc.Authenticate(ctx, "", "p1")
	requireKind(t, err, errors.KindInvalidInput)
}

func TestService_AuthenticateUpgradesLegacyHash(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	legacy := &domain.User{Username: "old", PasswordHash: password.LegacySHA256("secret")}
	require.NoError(t, store.Users().Create(ctx, legacy))

	_, err := svc.Authenticate(ctx, "old", "wrong")
	requireKind(t, err, errors.KindBadCredential)

	u, err := svc.Authenticate(ctx, "old", "secret")
	require.NoError(t, err)
	assert.Contains(t, u.PasswordHash, "$argon2id$")

	stored, err := store.Users().FindByID(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.PasswordHash, "$argon2id$")

	_, err = svc.Authenticate(ctx, "old", "secret")
	require.NoError(t, err)
}

func TestService_AuthenticateLegacyHashWhenDisabled(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	cfg := config.PasswordConfig{Time: 1, MemoryKiB: 8 * 1024, Threads: 1, KeyLength: 32, SaltLength: 16}
	svc := NewService(store, password.NewHasher(cfg), testLogger())

	legacy := &domain.User{Username: "old", PasswordHash: password.LegacySHA256("secret")}
	require.NoError(t, store.Users().Create(ctx, legacy))

	_, err := svc.Authenticate(ctx, "old", "secret")
	appErr := requireKind(t, err, errors.KindBadCredential)
	assert.Equal(t, 401, appErr.StatusCode())
	assert.Equal(t, errors.SeverityLow, appErr.Severity)

	stored, err := store.Users().FindByID(ctx, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, legacy.PasswordHash, stored.PasswordHash)
}

type mockHasher struct {
	mock.Mock
}

func (m *mockHasher) Hash(pw string) (string, error) {
	args := m.Called(pw)
	return args.String(0), args.Error(1)
}

func (m *mockHasher) Verify(pw, encoded string) (bool, bool, error) {
	args := m.Called(pw, encoded)
	return args.Bool(0), args.Bool(1), args.Error(2)
}

func TestService_DummyVerifyOnUnknownUser(t *testing.T) {
	h := &mockHasher{}
	h.On("Hash", mock.Anything).Return("$argon2id$dummy", nil).Once()
	h.On("Verify", "p1", "$argon2id$dummy").Return(false, false, nil).Twice()

	svc := NewService(repository.NewMemoryStore(), h, testLogger())

	for i := 0; i < 2; i++ {
		_, err := svc.Authenticate(context.Background(), "ghost", "p1")
		requireKind(t, err, errors.KindNotFound)
	}

	h.AssertExpectations(t)
}

func TestService_RegisterHashFailure(t *testing.T) {
	h := &mockHasher{}
	h.On("Hash", "p1").Return("", stdErrors.New("entropy exhausted")).Once()

	var buf bytes.Buffer
	svc := NewService(repository.NewMemoryStore(), h, slog.New(slog.NewTextHandler(&buf, nil)))

	_, err := svc.Register(context.Background(), "alice", "p1")
	appErr := requireKind(t, err, errors.KindInternal)
	assert.Equal(t, 500, appErr.StatusCode())
	assert.Contains(t, buf.String(), "register.hash")
	h.AssertExpectations(t)
}

type failingUsers struct {
	repository.UserRepository
	err error
}

func (f failingUsers) FindByUsername(context.Context, string) (*domain.User, error) {
	return nil, f.err
}

func (f failingUsers) FindByID(context.Context, int64) (*domain.User, error) {
	return nil, f.err
}

type failingStore struct {
	*repository.MemoryStore
	users failingUsers
}

func (s failingStore) Users() repository.UserRepository { return s.users }

func TestService_StorageFailure(t *testing.T) {
	boom := stdErrors.New("connection reset")
	mem := repository.NewMemoryStore()
	store := failingStore{MemoryStore: mem, users: failingUsers{UserRepository: mem.Users(), err: boom}}
	svc := NewService(store, testHasher(), testLogger())

	_, err := svc.Authenticate(context.Background(), "alice", "p1")
	appErr := requireKind(t, err, errors.KindInternal)
	assert.Equal(t, "E200", appErr.Code)
	assert.ErrorIs(t, err, boom)

	_, err = svc.Get(context.Background(), 1)
	requireKind(t, err, errors.KindInternal)
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	u, err := svc.Register(ctx, "alice", "p1")
	require.NoError(t, err)
	require.NoError(t, store.Scores().Append(ctx, &domain.ScoreEntry{UserID: u.ID, Level: 2, Score: 40}))

	profile, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.User.Username)
	assert.Equal(t, map[int]int64{2: 40}, profile.PerLevelBest)

	_, err = svc.Get(ctx, 404)
	requireKind(t, err, errors.KindNotFound)

	_, err = svc.Get(ctx, 0)
	requireKind(t, err, errors.KindInvalidInput)
}
