package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/requiemhq/requiem-api/internal/domain"
	"github.com/requiemhq/requiem-api/internal/events"
	"github.com/requiemhq/requiem-api/internal/store"
)

// fakeTxRunner executes the transaction function directly with a nil
// *sql.Tx. The fake stores ignore the tx handle, so service logic runs
// unchanged against in-memory state.
type fakeTxRunner struct {
	runErr error
	calls  int
}

func (r *fakeTxRunner) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	r.calls++
	if r.runErr != nil {
		return r.runErr
	}
	return fn(ctx, nil)
}

// fakeTaskStore is a stateful in-memory TaskStore.
type fakeTaskStore struct {
	mu     sync.Mutex
	tasks  map[int64]*domain.Task
	nextID int64

	createErr error
	updateErr error
	listErr   error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: make(map[int64]*domain.Task), nextID: 1}
}

func (s *fakeTaskStore) Create(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.tasks {
		if existing.Name == task.Name {
			return store.ErrTaskNameExists
		}
	}
	task.ID = s.nextID
	s.nextID++
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *fakeTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (s *fakeTaskStore) GetByName(ctx context.Context, name string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.Name == name {
			copied := *task
			return &copied, nil
		}
	}
	return nil, store.ErrTaskNotFound
}

func (s *fakeTaskStore) Update(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *fakeTaskStore) List(ctx context.Context) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	result := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		copied := *task
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *fakeTaskStore) ListIncomplete(ctx context.Context) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	result := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if task.Progress < domain.ProgressMax {
			copied := *task
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UpdatedAt.Before(result[j].UpdatedAt)
	})
	return result, nil
}

func (s *fakeTaskStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[int64]*domain.Task)
	return nil
}

func (s *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return s }

// fakeEventStore is a stateful in-memory TaskEventStore.
type fakeEventStore struct {
	mu     sync.Mutex
	events []*domain.TaskEvent
	nextID int64

	createErr error
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{nextID: 1}
}

func (s *fakeEventStore) Create(ctx context.Context, event *domain.TaskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	event.ID = s.nextID
	s.nextID++
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

func (s *fakeEventStore) List(ctx context.Context) ([]*domain.TaskEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*domain.TaskEvent, 0, len(s.events))
	for _, event := range s.events {
		copied := *event
		result = append(result, &copied)
	}
	return result, nil
}

func (s *fakeEventStore) ListRecent(ctx context.Context, limit int) ([]*domain.TaskEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]*domain.TaskEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(result) < limit; i-- {
		copied := *s.events[i]
		result = append(result, &copied)
	}
	return result, nil
}

func (s *fakeEventStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	return nil
}

func (s *fakeEventStore) WithTx(tx *sql.Tx) store.TaskEventStore { return s }

// recordingEmitter captures emitted notifications for assertions.
type recordingEmitter struct {
	mu      sync.Mutex
	emitted []*events.ProgressChanged
}

func (e *recordingEmitter) EmitProgressChanged(ctx context.Context, event *events.ProgressChanged) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitted = append(e.emitted, event)
}

func (e *recordingEmitter) Emitted() []*events.ProgressChanged {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*events.ProgressChanged(nil), e.emitted...)
}

// Interface compliance checks for the fakes.
var (
	_ TxRunner             = (*fakeTxRunner)(nil)
	_ store.TaskStore      = (*fakeTaskStore)(nil)
	_ store.TaskEventStore = (*fakeEventStore)(nil)
	_ events.Emitter       = (*recordingEmitter)(nil)
)
