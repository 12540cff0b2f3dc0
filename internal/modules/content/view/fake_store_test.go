package view

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/perse-cms/perse/internal/models"
	"github.com/perse-cms/perse/internal/pkg/pagination"
	"github.com/perse-cms/perse/internal/pkg/response"
)

var errTxDone = errors.New("transaction already finished")

// fakeStore is an in-memory Store. A transaction works on a private copy of
// the rows that replaces the committed set on Commit.
type fakeStore struct {
	mu    sync.Mutex
	rows  []models.ViewModel
	clock time.Time

	calls     int
	commits   int
	rollbacks int

	beginErr       error
	insertErr      error
	setHomepageErr error
	panicOnInsert  bool
	blockCount     bool
	lookupErr      error
	lookups        int

	// onCommit runs once a commit has landed.
	onCommit func()
	// afterLookup runs once, after the next lookup read the rows.
	afterLookup func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *fakeStore) snapshot() []models.ViewModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ViewModel, len(s.rows))
	copy(out, s.rows)
	return out
}

func (s *fakeStore) homepages() []models.ViewModel {
	var out []models.ViewModel
	for _, r := range s.snapshot() {
		if r.IsHomepage {
			out = append(out, r)
		}
	}
	return out
}

func (s *fakeStore) seed(v models.ViewModel) models.ViewModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&v)
	s.rows = append(s.rows, v)
	return v
}

func (s *fakeStore) stamp(v *models.ViewModel) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	s.clock = s.clock.Add(time.Second)
	v.CreatedAt = s.clock
	v.UpdatedAt = s.clock
}

func (s *fakeStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	rows := make([]models.ViewModel, len(s.rows))
	copy(rows, s.rows)
	return &fakeTx{store: s, rows: rows}, nil
}

func (s *fakeStore) find(match func(models.ViewModel) bool) (*models.ViewModel, error) {
	v, err := s.findRow(match)

	s.mu.Lock()
	hook := s.afterLookup
	s.afterLookup = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return v, err
}

func (s *fakeStore) findRow(match func(models.ViewModel) bool) (*models.ViewModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lookups++
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	for _, r := range s.rows {
		if match(r) {
			v := r
			return &v, nil
		}
	}
	return nil, ErrRowNotFound
}

func (s *fakeStore) FindByRoute(_ context.Context, route string, visibility models.Visibility) (*models.ViewModel, error) {
	return s.find(func(r models.ViewModel) bool { return r.Route == route && r.Visibility == visibility })
}

func (s *fakeStore) FindHomepage(_ context.Context, visibility models.Visibility) (*models.ViewModel, error) {
	return s.find(func(r models.ViewModel) bool { return r.IsHomepage && r.Visibility == visibility })
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*models.ViewModel, error) {
	return s.find(func(r models.ViewModel) bool { return r.ID == id })
}

func (s *fakeStore) List(_ context.Context, filter ListFilter) ([]models.ViewModel, response.Pagination, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	var matched []models.ViewModel
	for _, r := range s.rows {
		if filter.Visibility == "" || r.Visibility == filter.Visibility {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	q := pagination.Normalize(filter.Page)
	start := min(q.Offset(), len(matched))
	end := min(start+q.Size, len(matched))
	return matched[start:end], pagination.Meta(int64(len(matched)), q), nil
}

type fakeTx struct {
	store *fakeStore
	rows  []models.ViewModel
	done  bool
}

func (t *fakeTx) CountRoute(ctx context.Context, route string) (int64, error) {
	t.store.mu.Lock()
	t.store.calls++
	block := t.store.blockCount
	t.store.mu.Unlock()

	if block {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int64
	for _, r := range t.rows {
		if r.Route == route {
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) Insert(_ context.Context, v *models.ViewModel) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.calls++
	if t.store.panicOnInsert {
		panic("insert exploded")
	}
	if t.store.insertErr != nil {
		return t.store.insertErr
	}
	t.store.stamp(v)
	t.rows = append(t.rows, *v)
	return nil
}

func (t *fakeTx) ClearHomepage(context.Context) (int64, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.calls++
	var n int64
	for i := range t.rows {
		if t.rows[i].IsHomepage {
			t.rows[i].IsHomepage = false
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) SetHomepage(_ context.Context, id string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.calls++
	if t.store.setHomepageErr != nil {
		return t.store.setHomepageErr
	}
	for i := range t.rows {
		if t.rows[i].ID == id {
			t.rows[i].IsHomepage = true
			return nil
		}
	}
	return ErrHomepageMissing
}

func (t *fakeTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.rows = t.rows
	t.store.commits++
	if t.store.onCommit != nil {
		t.store.onCommit()
	}
	return nil
}

func (t *fakeTx) Rollback() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.done {
		return errTxDone
	}
	t.done = true
	t.store.rollbacks++
	return nil
}
