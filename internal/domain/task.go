package domain

import "time"

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Task is a unit of work owned by a user, optionally within a project.
type Task struct {
	ID        string
	UserID    string
	ProjectID string
	Title     string
	Status    TaskStatus
	Assignee  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectStatus represents the state of a project.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

// Project groups tasks for a user.
type Project struct {
	ID        string
	UserID    string
	Name      string
	Status    ProjectStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
