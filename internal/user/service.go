package user

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/Proton-105/scoreboard/internal/domain"
	"github.com/Proton-105/scoreboard/internal/errors"
	passwd "github.com/Proton-105/scoreboard/internal/password"
	"github.com/Proton-105/scoreboard/internal/repository"
	"github.com/Proton-105/scoreboard/pkg/metrics"
)

const (
	opRegister = "register"
	opLogin    = "login"
)

// Hasher derives and checks password hashes.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (ok bool, needsRehash bool, err error)
}

// Service provides account operations over the user store.
type Service struct {
	store  repository.Store
	hasher Hasher
	log    *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewService constructs a new Service instance.
func NewService(store repository.Store, hasher Hasher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, hasher: hasher, log: log}
}

// Register creates an account for username. Both fields are trimmed and must be non-empty.
func (s *Service) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		metrics.RecordAuthAttempt(opRegister, "invalid")
		return nil, errors.NewValidationError("username and password are required", errors.MsgMissingCredentials)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logError("register.hash", username, err)
		return nil, errors.NewInternalError(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{Username: username, PasswordHash: hash}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if stdErrors.Is(err, repository.ErrDuplicate) {
			metrics.RecordAuthAttempt(opRegister, "duplicate")
			return nil, errors.NewDuplicateUsernameError(username, err)
		}

		s.logError("register.create", username, err)
		return nil, errors.NewDatabaseError(err)
	}

	metrics.RecordAuthAttempt(opRegister, "ok")
	s.log.Info("user registered", slog.Int64("user_id", user.ID), slog.String("username", username))

	return user, nil
}

// Authenticate checks username and password. An unknown username and a wrong
// password are reported as different errors.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		metrics.RecordAuthAttempt(opLogin, "invalid")
		return nil, errors.NewValidationError("username and password are required", errors.MsgMissingCredentials)
	}

	user, err := s.store.Users().FindByUsername(ctx, username)
	if err != nil {
		if stdErrors.Is(err, repository.ErrNotFound) {
			// keep the cost of both branches at one hash verification
			_, _, _ = s.hasher.Verify(password, s.dummy())
			metrics.RecordAuthAttempt(opLogin, "not_found")
			return nil, errors.NewUserNotFoundError(strconv.Quote(username), err)
		}

		s.logError("login.find", username, err)
		return nil, errors.NewDatabaseError(err)
	}

	ok, needsRehash, err := s.hasher.Verify(password, user.PasswordHash)
	if stdErrors.Is(err, passwd.ErrLegacyDisabled) {
		// the stored hash can no longer be checked; the user has to reset it
		s.log.Warn("login with disabled legacy hash", slog.Int64("user_id", user.ID))
		metrics.RecordAuthAttempt(opLogin, "bad_credential")
		return nil, errors.NewBadCredentialError(username)
	}
	if err != nil {
		s.logError("login.verify", username, err)
		return nil, errors.NewInternalError(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		metrics.RecordAuthAttempt(opLogin, "bad_credential")
		return nil, errors.NewBadCredentialError(username)
	}

	if needsRehash {
		s.upgradeHash(ctx, user, password)
	}

	metrics.RecordAuthAttempt(opLogin, "ok")
	return user, nil
}

// Get returns the user with id and their best score per level.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Profile, error) {
	if id <= 0 {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid user id %d", id), "")
	}

	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NewUserNotFoundError(strconv.FormatInt(id, 10), err)
		}

		s.logError("get.find", strconv.FormatInt(id, 10), err)
		return nil, errors.NewDatabaseError(err)
	}

	best, err := s.store.Scores().BestPerLevel(ctx, id)
	if err != nil {
		s.logError("get.best_per_level", user.Username, err)
		return nil, errors.NewDatabaseError(err)
	}

	return &domain.Profile{User: user, PerLevelBest: best}, nil
}

// upgradeHash replaces a legacy or weak hash after a successful login.
// Failures are logged only; the login itself has already succeeded.
func (s *Service) upgradeHash(ctx context.Context, user *domain.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logError("login.rehash", user.Username, err)
		return
	}

	if err := s.store.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		s.logError("login.store_rehash", user.Username, err)
		return
	}

	user.PasswordHash = hash
	s.log.Info("password hash upgraded", slog.Int64("user_id", user.ID))
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("scoreboard-dummy-password")
		if err != nil {
			s.logError("dummy_hash", "", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *Service) logError(operation, username string, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.String("username", username),
		slog.Any("error", err),
	)
}
