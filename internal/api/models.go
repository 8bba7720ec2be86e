package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/requiemhq/requiem-api/internal/domain"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	// UserID is the unique identifier for the authenticated user
	UserID uuid.UUID `json:"user_id"`

	// AccessToken is the JWT token used for API authorization
	AccessToken string `json:"token"`

	// RefreshToken is the JWT token used to obtain new access tokens
	RefreshToken string `json:"refresh_token,omitempty"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TaskResponse represents one task snapshot in API payloads.
type TaskResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Progress    int       `json:"progress"`
	Description *string   `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskEventResponse represents one progress event in API payloads.
type TaskEventResponse struct {
	ID        int64     `json:"id"`
	TaskName  string    `json:"task_name"`
	Progress  int       `json:"progress"`
	Source    string    `json:"source"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ProgressResponse is the payload for the task listing endpoint.
type ProgressResponse struct {
	Tasks           []TaskResponse `json:"tasks"`
	OverallProgress float64        `json:"overall_progress"`
}

// ProgressReportResponse is the payload for the full progress report.
type ProgressReportResponse struct {
	Tasks           []TaskResponse      `json:"tasks"`
	RecentEvents    []TaskEventResponse `json:"recent_events"`
	OverallProgress float64             `json:"overall_progress"`
}

// UpdateTaskRequest defines the payload for the manual task edit endpoint.
type UpdateTaskRequest struct {
	Name        string  `json:"name"        validate:"required,min=1"`
	Progress    int     `json:"progress"    validate:"gte=0,lte=100"`
	Description *string `json:"description"`
}

// ChatMessageRequest defines the payload for posting a chat message.
type ChatMessageRequest struct {
	Content string `json:"content" validate:"required,min=1"`
}

// MessageResponse represents one chat message in API payloads.
type MessageResponse struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func taskToResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Name:        task.Name,
		Progress:    task.Progress,
		Description: task.Description,
		UpdatedAt:   task.UpdatedAt,
	}
}

func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	result := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		result = append(result, taskToResponse(task))
	}
	return result
}

func eventToResponse(event *domain.TaskEvent) TaskEventResponse {
	return TaskEventResponse{
		ID:        event.ID,
		TaskName:  event.TaskName,
		Progress:  event.Progress,
		Source:    event.Source,
		Note:      event.Note,
		CreatedAt: event.CreatedAt,
	}
}

func eventsToResponse(events []*domain.TaskEvent) []TaskEventResponse {
	result := make([]TaskEventResponse, 0, len(events))
	for _, event := range events {
		result = append(result, eventToResponse(event))
	}
	return result
}

func messageToResponse(message *domain.Message) MessageResponse {
	return MessageResponse{
		ID:        message.ID,
		Role:      string(message.Role),
		Content:   message.Content,
		CreatedAt: message.CreatedAt,
	}
}

func messagesToResponse(messages []*domain.Message) []MessageResponse {
	result := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		result = append(result, messageToResponse(message))
	}
	return result
}
