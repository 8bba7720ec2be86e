package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/requiemhq/requiem-api/internal/annotation"
	"github.com/requiemhq/requiem-api/internal/api/shared"
	"github.com/requiemhq/requiem-api/internal/config"
	"github.com/requiemhq/requiem-api/internal/domain"
	"github.com/requiemhq/requiem-api/internal/service"
	"github.com/requiemhq/requiem-api/internal/store"
)

// fakeProgressService is an in-memory stand-in for the progress
// service, recording the calls handlers make.
type fakeProgressService struct {
	mu         sync.Mutex
	tasks      []*domain.Task
	events     []*domain.TaskEvent
	directives []annotation.Directive
	advanced   []int

	listErr   error
	updateErr error
}

var _ service.ProgressService = (*fakeProgressService)(nil)

func (s *fakeProgressService) GetOrCreateTask(ctx context.Context, name string) (*domain.Task, error) {
	for _, task := range s.tasks {
		if task.Name == name {
			return task, nil
		}
	}
	task := &domain.Task{ID: int64(len(s.tasks) + 1), Name: name}
	s.tasks = append(s.tasks, task)
	return task, nil
}

func (s *fakeProgressService) ApplyProgressEvent(
	ctx context.Context, taskID int64, value int, source string, note *string,
) (*domain.TaskEvent, error) {
	event := &domain.TaskEvent{TaskID: taskID, Progress: value, Source: source, Note: note}
	s.events = append(s.events, event)
	return event, nil
}

func (s *fakeProgressService) ApplyDirective(
	ctx context.Context, directive annotation.Directive, source string,
) (*domain.TaskEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directives = append(s.directives, directive)
	return &domain.TaskEvent{
		TaskName: directive.TaskName,
		Progress: directive.Progress,
		Source:   source,
		Note:     directive.Note,
	}, nil
}

func (s *fakeProgressService) UpdateTask(
	ctx context.Context, id int64, name string, progress int, description *string,
) (*domain.Task, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	for _, task := range s.tasks {
		if task.ID == id {
			task.Name = name
			task.Progress = progress
			task.Description = description
			return task, nil
		}
	}
	return nil, service.ErrTaskNotFound
}

func (s *fakeProgressService) AdvanceNextTask(ctx context.Context, step int) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanced = append(s.advanced, step)
	return nil, nil
}

func (s *fakeProgressService) RunCycle(
	ctx context.Context, req service.CycleRequest,
) ([]*domain.TaskEvent, error) {
	return nil, nil
}

func (s *fakeProgressService) ResetFromSeeds(
	ctx context.Context, seeds []config.SeedTask,
) ([]*domain.Task, error) {
	s.tasks = nil
	s.events = nil
	for i, seed := range seeds {
		s.tasks = append(s.tasks, &domain.Task{
			ID:       int64(i + 1),
			Name:     seed.Name,
			Progress: domain.ClampProgress(seed.Progress),
		})
	}
	return s.tasks, nil
}

func (s *fakeProgressService) SeedTasks(ctx context.Context, seeds []config.SeedTask) error {
	return nil
}

func (s *fakeProgressService) ListTasks(ctx context.Context) ([]*domain.Task, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tasks, nil
}

func (s *fakeProgressService) RecentEvents(ctx context.Context, limit int) ([]*domain.TaskEvent, error) {
	if limit > len(s.events) {
		limit = len(s.events)
	}
	return s.events[:limit], nil
}

// fakeMessageStore keeps messages in memory.
type fakeMessageStore struct {
	messages []*domain.Message
	nextID   int64
}

var _ store.MessageStore = (*fakeMessageStore)(nil)

func (s *fakeMessageStore) Create(ctx context.Context, message *domain.Message) error {
	s.nextID++
	message.ID = s.nextID
	s.messages = append(s.messages, message)
	return nil
}

func (s *fakeMessageStore) ListRecentByUser(
	ctx context.Context, userID uuid.UUID, limit int,
) ([]*domain.Message, error) {
	var result []*domain.Message
	for i := len(s.messages) - 1; i >= 0 && len(result) < limit; i-- {
		if s.messages[i].UserID == userID {
			result = append(result, s.messages[i])
		}
	}
	return result, nil
}

func (s *fakeMessageStore) WithTx(tx *sql.Tx) store.MessageStore { return s }

// echoGenerator returns a fixed reply regardless of prompt.
type echoGenerator struct {
	reply string
}

func (g echoGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.reply, nil
}

func testProgressConfig() config.ProgressConfig {
	return config.ProgressConfig{
		SeedTasks: []config.SeedTask{
			{Name: "Deploy", Progress: 20},
			{Name: "Test", Progress: 0},
		},
		EventHistoryLimit:  25,
		DefaultEventSource: "api",
	}
}

func authedRequest(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := shared.SetUserID(req.Context(), uuid.New())
	return req.WithContext(ctx)
}

func TestGetProgress(t *testing.T) {
	t.Parallel()

	svc := &fakeProgressService{tasks: []*domain.Task{
		{ID: 1, Name: "Deploy", Progress: 55, UpdatedAt: time.Now().UTC()},
		{ID: 2, Name: "Test", Progress: 0, UpdatedAt: time.Now().UTC()},
	}}
	handler := NewProgressHandler(svc, testProgressConfig())

	rec := httptest.NewRecorder()
	handler.GetProgress(rec, authedRequest(http.MethodGet, "/api/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProgressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, "Deploy", resp.Tasks[0].Name)
	assert.Equal(t, 27.5, resp.OverallProgress)
}

func TestGetReport(t *testing.T) {
	t.Parallel()

	note := "halfway"
	svc := &fakeProgressService{
		tasks: []*domain.Task{{ID: 1, Name: "Deploy", Progress: 55}},
		events: []*domain.TaskEvent{
			{ID: 1, TaskName: "Deploy", Progress: 55, Source: "api", Note: &note},
		},
	}
	handler := NewProgressHandler(svc, testProgressConfig())

	rec := httptest.NewRecorder()
	handler.GetReport(rec, authedRequest(http.MethodGet, "/api/progress/report", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProgressReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.RecentEvents, 1)
	assert.Equal(t, "Deploy", resp.RecentEvents[0].TaskName)
	require.NotNil(t, resp.RecentEvents[0].Note)
	assert.Equal(t, "halfway", *resp.RecentEvents[0].Note)
}

func TestUpdateTaskEndpoint(t *testing.T) {
	t.Parallel()

	newUpdateRequest := func(t *testing.T, id string, payload any) *http.Request {
		t.Helper()
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		req := authedRequest(http.MethodPut, "/api/progress/"+id, body)

		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("valid update", func(t *testing.T) {
		t.Parallel()
		svc := &fakeProgressService{tasks: []*domain.Task{{ID: 1, Name: "Deploy", Progress: 10}}}
		handler := NewProgressHandler(svc, testProgressConfig())

		rec := httptest.NewRecorder()
		handler.UpdateTask(rec, newUpdateRequest(t, "1", UpdateTaskRequest{
			Name:     "Deploy v2",
			Progress: 75,
		}))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Deploy v2", resp.Name)
		assert.Equal(t, 75, resp.Progress)
	})

	t.Run("unknown id yields 404", func(t *testing.T) {
		t.Parallel()
		handler := NewProgressHandler(&fakeProgressService{}, testProgressConfig())

		rec := httptest.NewRecorder()
		handler.UpdateTask(rec, newUpdateRequest(t, "42", UpdateTaskRequest{
			Name:     "Ghost",
			Progress: 10,
		}))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-numeric id yields 400", func(t *testing.T) {
		t.Parallel()
		handler := NewProgressHandler(&fakeProgressService{}, testProgressConfig())

		rec := httptest.NewRecorder()
		handler.UpdateTask(rec, newUpdateRequest(t, "abc", UpdateTaskRequest{
			Name:     "Deploy",
			Progress: 10,
		}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("out-of-range progress yields 400", func(t *testing.T) {
		t.Parallel()
		handler := NewProgressHandler(&fakeProgressService{}, testProgressConfig())

		rec := httptest.NewRecorder()
		handler.UpdateTask(rec, newUpdateRequest(t, "1", UpdateTaskRequest{
			Name:     "Deploy",
			Progress: 150,
		}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestResetProgressEndpoint(t *testing.T) {
	t.Parallel()

	svc := &fakeProgressService{tasks: []*domain.Task{{ID: 9, Name: "Old", Progress: 80}}}
	handler := NewProgressHandler(svc, testProgressConfig())

	rec := httptest.NewRecorder()
	handler.ResetProgress(rec, authedRequest(http.MethodPost, "/api/progress/reset", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp ProgressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 2)
	assert.Equal(t, "Deploy", resp.Tasks[0].Name)
	assert.Equal(t, 20, resp.Tasks[0].Progress)
}

func TestPostMessage(t *testing.T) {
	t.Parallel()

	chatCfg := config.ChatConfig{Persona: "mystical", AdvanceStep: 7, Generator: "template"}

	t.Run("persists both messages and applies directives", func(t *testing.T) {
		t.Parallel()

		svc := &fakeProgressService{}
		messages := &fakeMessageStore{}
		handler := NewChatHandler(
			messages,
			echoGenerator{reply: "Noted. [progress|Deploy|55|halfway] Keep going."},
			svc, chatCfg, testProgressConfig(), nil)

		body, err := json.Marshal(ChatMessageRequest{Content: "how is the deploy going?"})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		handler.PostMessage(rec, authedRequest(http.MethodPost, "/api/chat/message", body))

		require.Equal(t, http.StatusCreated, rec.Code)

		var resp []MessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 2)
		assert.Equal(t, "user", resp[0].Role)
		assert.Equal(t, "ai", resp[1].Role)

		require.Len(t, svc.directives, 1)
		assert.Equal(t, "Deploy", svc.directives[0].TaskName)
		assert.Equal(t, 55, svc.directives[0].Progress)

		require.Len(t, svc.advanced, 1)
		assert.Equal(t, 7, svc.advanced[0])
	})

	t.Run("reply without directives still advances", func(t *testing.T) {
		t.Parallel()

		svc := &fakeProgressService{}
		handler := NewChatHandler(
			&fakeMessageStore{},
			echoGenerator{reply: "Nothing to report."},
			svc, chatCfg, testProgressConfig(), nil)

		body, err := json.Marshal(ChatMessageRequest{Content: "hello"})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		handler.PostMessage(rec, authedRequest(http.MethodPost, "/api/chat/message", body))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Empty(t, svc.directives)
		assert.Len(t, svc.advanced, 1)
	})

	t.Run("missing user yields 401", func(t *testing.T) {
		t.Parallel()

		handler := NewChatHandler(
			&fakeMessageStore{},
			echoGenerator{reply: "hi"},
			&fakeProgressService{}, chatCfg, testProgressConfig(), nil)

		body, err := json.Marshal(ChatMessageRequest{Content: "hello"})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/chat/message", bytes.NewReader(body))
		handler.PostMessage(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty content yields 400", func(t *testing.T) {
		t.Parallel()

		handler := NewChatHandler(
			&fakeMessageStore{},
			echoGenerator{reply: "hi"},
			&fakeProgressService{}, chatCfg, testProgressConfig(), nil)

		body, err := json.Marshal(ChatMessageRequest{Content: ""})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		handler.PostMessage(rec, authedRequest(http.MethodPost, "/api/chat/message", body))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetHistory(t *testing.T) {
	t.Parallel()

	chatCfg := config.ChatConfig{Persona: "mystical", AdvanceStep: 7, Generator: "template"}
	userID := uuid.New()

	messages := &fakeMessageStore{}
	for _, content := range []string{"first", "second", "third"} {
		msg, err := domain.NewMessage(userID, domain.MessageRoleUser, content)
		require.NoError(t, err)
		require.NoError(t, messages.Create(context.Background(), msg))
	}

	handler := NewChatHandler(
		messages, echoGenerator{reply: "hi"},
		&fakeProgressService{}, chatCfg, testProgressConfig(), nil)

	t.Run("chronological order with limit", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/api/chat/history?limit=2", nil)
		req = req.WithContext(shared.SetUserID(req.Context(), userID))

		rec := httptest.NewRecorder()
		handler.GetHistory(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp []MessageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 2)
		assert.Equal(t, "second", resp[0].Content)
		assert.Equal(t, "third", resp[1].Content)
	})

	t.Run("invalid limit yields 400", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/api/chat/history?limit=9000", nil)
		req = req.WithContext(shared.SetUserID(req.Context(), userID))

		rec := httptest.NewRecorder()
		handler.GetHistory(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
