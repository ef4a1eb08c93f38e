package domain

import "time"

// Task priority levels accepted by the backend.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task mirrors the task shape served by the backend API. The proxy relays
// bodies verbatim; these types document the contract and back the tests.
type Task struct {
	ID          string     `json:"id"`
	UserEmail   string     `json:"user_email"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    string     `json:"priority"`
	IsCompleted bool       `json:"is_completed"`
	DueDate     *time.Time `json:"due_date"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskList is the backend's paginated list response.
type TaskList struct {
	Tasks      []Task `json:"tasks"`
	TotalCount int    `json:"total_count"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}

// BackendError is the backend's error body. Detail is either a string or a
// list of field validation errors, so it stays untyped here.
type BackendError struct {
	Detail any `json:"detail"`
}
