package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/Proton-105/scoreboard/internal/domain"
)

// MemoryStore keeps all data in process memory. Transactions are serialized
// and rolled back by restoring a snapshot taken when they begin.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

type memState struct {
	users       map[int64]*domain.User
	byName      map[string]int64
	scores      []domain.ScoreEntry
	nextUserID  int64
	nextScoreID int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			users:  make(map[int64]*domain.User),
			byName: make(map[string]int64),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Users() UserRepository   { return &memUsers{store: s} }
func (s *MemoryStore) Scores() ScoreRepository { return &memScores{store: s} }

// WithTx holds the store lock for the duration of fn.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()

	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
		if err != nil {
			s.state = snapshot
		}
	}()

	return fn(ctx, &memTx{store: s})
}

func (s *MemoryStore) HealthCheck(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// run executes fn under the store lock unless the caller already holds it.
func (s *MemoryStore) run(locked bool, fn func(st *memState) error) error {
	if !locked {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.state)
}

func (st *memState) clone() *memState {
	c := &memState{
		users:       make(map[int64]*domain.User, len(st.users)),
		byName:      make(map[string]int64, len(st.byName)),
		scores:      append([]domain.ScoreEntry(nil), st.scores...),
		nextUserID:  st.nextUserID,
		nextScoreID: st.nextScoreID,
	}
	for id, u := range st.users {
		cp := *u
		c.users[id] = &cp
	}
	for name, id := range st.byName {
		c.byName[name] = id
	}
	return c
}

type memTx struct {
	store *MemoryStore
}

func (t *memTx) Users() UserRepository   { return &memUsers{store: t.store, locked: true} }
func (t *memTx) Scores() ScoreRepository { return &memScores{store: t.store, locked: true} }

type memUsers struct {
	store  *MemoryStore
	locked bool
}

func (r *memUsers) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.store.run(r.locked, func(st *memState) error {
		if _, taken := st.byName[user.Username]; taken {
			return ErrDuplicate
		}

		st.nextUserID++
		user.ID = st.nextUserID
		user.BestScore = 0
		user.TotalScore = 0
		user.LevelUnlocked = domain.DefaultLevel
		user.CreatedAt = r.store.now()

		cp := *user
		st.users[user.ID] = &cp
		st.byName[user.Username] = user.ID
		return nil
	})
}

func (r *memUsers) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var found *domain.User
	err := r.store.run(r.locked, func(st *memState) error {
		id, ok := st.byName[username]
		if !ok {
			return ErrNotFound
		}
		cp := *st.users[id]
		found = &cp
		return nil
	})
	return found, err
}

func (r *memUsers) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var found *domain.User
	err := r.store.run(r.locked, func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return ErrNotFound
		}
		cp := *u
		found = &cp
		return nil
	})
	return found, err
}

func (r *memUsers) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.store.run(r.locked, func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return ErrNotFound
		}
		u.PasswordHash = hash
		return nil
	})
}

func (r *memUsers) LockAggregates(ctx context.Context, id int64) (domain.Aggregates, error) {
	if err := ctx.Err(); err != nil {
		return domain.Aggregates{}, err
	}

	var agg domain.Aggregates
	err := r.store.run(r.locked, func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return ErrNotFound
		}
		agg = domain.Aggregates{BestScore: u.BestScore, TotalScore: u.TotalScore}
		return nil
	})
	return agg, err
}

func (r *memUsers) AddScore(ctx context.Context, id int64, score int64) (domain.Aggregates, error) {
	if err := ctx.Err(); err != nil {
		return domain.Aggregates{}, err
	}

	var agg domain.Aggregates
	err := r.store.run(r.locked, func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return ErrNotFound
		}
		if score > math.MaxInt64-u.TotalScore {
			return ErrOutOfRange
		}
		if score > u.BestScore {
			u.BestScore = score
		}
		u.TotalScore += score
		agg = domain.Aggregates{BestScore: u.BestScore, TotalScore: u.TotalScore}
		return nil
	})
	return agg, err
}

func (r *memUsers) Top(ctx context.Context, n int) ([]domain.RankingEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []domain.RankingEntry
	err := r.store.run(r.locked, func(st *memState) error {
		users := make([]*domain.User, 0, len(st.users))
		for _, u := range st.users {
			users = append(users, u)
		}
		sort.Slice(users, func(i, j int) bool {
			if users[i].BestScore != users[j].BestScore {
				return users[i].BestScore > users[j].BestScore
			}
			return users[i].ID < users[j].ID
		})

		if n < 0 {
			n = 0
		}
		if n < len(users) {
			users = users[:n]
		}
		entries = make([]domain.RankingEntry, 0, len(users))
		for _, u := range users {
			entries = append(entries, domain.RankingEntry{Username: u.Username, BestScore: u.BestScore})
		}
		return nil
	})
	return entries, err
}

type memScores struct {
	store  *MemoryStore
	locked bool
}

func (r *memScores) Append(ctx context.Context, entry *domain.ScoreEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.store.run(r.locked, func(st *memState) error {
		if _, ok := st.users[entry.UserID]; !ok {
			return ErrNotFound
		}
		if entry.Level < math.MinInt32 || entry.Level > math.MaxInt32 {
			return ErrOutOfRange
		}

		st.nextScoreID++
		entry.ID = st.nextScoreID
		entry.RecordedAt = r.store.now()
		st.scores = append(st.scores, *entry)
		return nil
	})
}

func (r *memScores) BestPerLevel(ctx context.Context, userID int64) (map[int]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best := make(map[int]int64)
	err := r.store.run(r.locked, func(st *memState) error {
		for _, e := range st.scores {
			if e.UserID != userID {
				continue
			}
			if cur, ok := best[e.Level]; !ok || e.Score > cur {
				best[e.Level] = e.Score
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return best, nil
}
