package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskvoice/backend/internal/domain"
	"github.com/taskvoice/backend/internal/store"
)

// Outcome is the structured result of dispatching an intent.
type Outcome struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Handler executes one intent against the domain store. Handler failures
// (not-found, validation, store errors) become failed outcomes, never
// faults.
type Handler func(ctx context.Context, entities map[string]string, userID string) Outcome

// Dispatcher maps intents to their handlers.
type Dispatcher struct {
	handlers map[domain.Intent]Handler
	store    store.Store
}

// NewDispatcher creates a dispatcher with all supported intents
// registered.
func NewDispatcher(st store.Store) *Dispatcher {
	d := &Dispatcher{store: st}
	d.handlers = map[domain.Intent]Handler{
		domain.IntentCreateTask:    d.createTask,
		domain.IntentUpdateTask:    d.updateTask,
		domain.IntentCompleteTask:  d.completeTask,
		domain.IntentCreateProject: d.createProject,
		domain.IntentUpdateProject: d.updateProject,
		domain.IntentAssignTask:    d.assignTask,
		domain.IntentListTasks:     d.listTasks,
		domain.IntentListProjects:  d.listProjects,
		domain.IntentGetStatus:     d.getStatus,
		domain.IntentHelp:          d.showHelp,
	}
	return d
}

// Dispatch runs the handler for an intent. Intents outside the registry
// yield a failed outcome naming the intent.
func (d *Dispatcher) Dispatch(ctx context.Context, intent domain.Intent, entities map[string]string, userID string) Outcome {
	handler, ok := d.handlers[intent]
	if !ok {
		return Outcome{Success: false, Message: fmt.Sprintf("Unknown intent: %s", intent)}
	}
	return handler(ctx, entities, userID)
}

func (d *Dispatcher) createTask(ctx context.Context, entities map[string]string, userID string) Outcome {
	name := entities["task_name"]
	if name == "" {
		return Outcome{Success: false, Message: "Task name not provided"}
	}

	now := time.Now()
	task := &domain.Task{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     name,
		Status:    domain.TaskStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.store.CreateTask(ctx, task); err != nil {
		return storeFailure("create task", err)
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Task '%s' created successfully", name),
		Data:    map[string]interface{}{"task_id": task.ID, "task_name": name},
	}
}

func (d *Dispatcher) updateTask(ctx context.Context, entities map[string]string, userID string) Outcome {
	name := entities["task_name"]
	if name == "" {
		return Outcome{Success: false, Message: "Task name not provided"}
	}
	status := entities["status"]
	if status == "" {
		return Outcome{Success: false, Message: "Task status not provided"}
	}

	task, err := d.store.GetTaskByTitle(ctx, userID, name)
	if err != nil {
		return storeFailure("update task", err)
	}
	task.Status = parseTaskStatus(status)
	if err := d.store.UpdateTask(ctx, task); err != nil {
		return storeFailure("update task", err)
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Task '%s' updated to %s", name, task.Status),
		Data:    map[string]interface{}{"task_id": task.ID, "status": string(task.Status)},
	}
}

func (d *Dispatcher) completeTask(ctx context.Context, entities map[string]string, userID string) Outcome {
	name := entities["task_name"]
	if name == "" {
		return Outcome{Success: false, Message: "Task name not provided"}
	}

	task, err := d.store.GetTaskByTitle(ctx, userID, name)
	if err != nil {
		return storeFailure("complete task", err)
	}
	task.Status = domain.TaskStatusCompleted
	if err := d.store.UpdateTask(ctx, task); err != nil {
		return storeFailure("complete task", err)
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Task '%s' marked as complete", name),
		Data:    map[string]interface{}{"task_id": task.ID, "status": string(domain.TaskStatusCompleted)},
	}
}

func (d *Dispatcher) createProject(ctx context.Context, entities map[string]string, userID string) Outcome {
	name := entities["project_name"]
	if name == "" {
		return Outcome{Success: false, Message: "Project name not provided"}
	}

	now := time.Now()
	project := &domain.Project{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Status:    domain.ProjectStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.store.CreateProject(ctx, project); err != nil {
		return storeFailure("create project", err)
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Project '%s' created successfully", name),
		Data:    map[string]interface{}{"project_id": project.ID, "project_name": name},
	}
}

func (d *Dispatcher) updateProject(ctx context.Context, entities map[string]string, userID string) Outcome {
	name := entities["project_name"]
	if name == "" {
		return Outcome{Success: false, Message: "Project name not provided"}
	}
	status := entities["status"]
	if status == "" {
		return Outcome{Success: false, Message: "Project status not provided"}
	}

	project, err := d.store.GetProjectByName(ctx, userID, name)
	if err != nil {
		return storeFailure("update project", err)
	}
	project.Status = parseProjectStatus(status)
	if err := d.store.UpdateProject(ctx, project); err != nil {
		return storeFailure("update project", err)
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Project '%s' updated to %s", name, project.Status),
		Data:    map[string]interface{}{"project_id": project.ID, "status": string(project.Status)},
	}
}

func (d *Dispatcher) assignTask(ctx context.Context, entities map[string]string, userID string) Outcome {
	name := entities["task_name"]
	assignee := entities["assignee"]
	if name == "" || assignee == "" {
		return Outcome{Success: false, Message: "Task name and assignee required"}
	}

	task, err := d.store.GetTaskByTitle(ctx, userID, name)
	if err != nil {
		return storeFailure("assign task", err)
	}
	task.Assignee = assignee
	if err := d.store.UpdateTask(ctx, task); err != nil {
		return storeFailure("assign task", err)
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Task '%s' assigned to %s", name, assignee),
		Data:    map[string]interface{}{"task_id": task.ID, "assignee": assignee},
	}
}

func (d *Dispatcher) listTasks(ctx context.Context, _ map[string]string, userID string) Outcome {
	tasks, err := d.store.ListTasks(ctx, userID)
	if err != nil {
		return storeFailure("list tasks", err)
	}

	items := make([]map[string]interface{}, len(tasks))
	for i, t := range tasks {
		items[i] = map[string]interface{}{"title": t.Title, "status": string(t.Status)}
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("You have %d tasks", len(tasks)),
		Data:    map[string]interface{}{"tasks": items},
	}
}

func (d *Dispatcher) listProjects(ctx context.Context, _ map[string]string, userID string) Outcome {
	projects, err := d.store.ListProjects(ctx, userID)
	if err != nil {
		return storeFailure("list projects", err)
	}

	items := make([]map[string]interface{}, len(projects))
	for i, p := range projects {
		items[i] = map[string]interface{}{"name": p.Name, "status": string(p.Status)}
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("You have %d projects", len(projects)),
		Data:    map[string]interface{}{"projects": items},
	}
}

// getStatus resolves an item name as a task first, then a project.
func (d *Dispatcher) getStatus(ctx context.Context, entities map[string]string, userID string) Outcome {
	name := entities["item_name"]
	if name == "" {
		return Outcome{Success: false, Message: "Item name not provided"}
	}

	if task, err := d.store.GetTaskByTitle(ctx, userID, name); err == nil {
		return Outcome{
			Success: true,
			Message: fmt.Sprintf("%s is %s", task.Title, statusPhrase(string(task.Status))),
			Data:    map[string]interface{}{"item_name": task.Title, "status": string(task.Status)},
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return storeFailure("get status", err)
	}

	project, err := d.store.GetProjectByName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Outcome{Success: false, Message: fmt.Sprintf("Could not find '%s'", name)}
		}
		return storeFailure("get status", err)
	}
	return Outcome{
		Success: true,
		Message: fmt.Sprintf("%s is %s", project.Name, statusPhrase(string(project.Status))),
		Data:    map[string]interface{}{"item_name": project.Name, "status": string(project.Status)},
	}
}

func (d *Dispatcher) showHelp(_ context.Context, _ map[string]string, _ string) Outcome {
	entries := Catalog()
	commands := make([]string, len(entries))
	for i, e := range entries {
		commands[i] = e.Command
	}
	return Outcome{
		Success: true,
		Message: "Here are some voice commands you can try:",
		Data:    map[string]interface{}{"commands": commands},
	}
}

// storeFailure converts a store error into a failed outcome with a
// user-presentable message.
func storeFailure(op string, err error) Outcome {
	var verr *store.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Outcome{Success: false, Message: fmt.Sprintf("Failed to %s: %s", op, notFoundDetail(err))}
	case errors.As(err, &verr):
		return Outcome{Success: false, Message: fmt.Sprintf("Failed to %s: %s %s", op, verr.Field, verr.Reason)}
	}
	return Outcome{Success: false, Message: fmt.Sprintf("Failed to %s: %v", op, err)}
}

// notFoundDetail keeps the wrapped "task %q: not found" context without
// the error-chain formatting.
func notFoundDetail(err error) string {
	return err.Error()
}

func parseTaskStatus(s string) domain.TaskStatus {
	switch s {
	case "pending":
		return domain.TaskStatusPending
	case "in_progress", "in progress", "started":
		return domain.TaskStatusInProgress
	case "completed", "complete", "done":
		return domain.TaskStatusCompleted
	}
	return domain.TaskStatusPending
}

func parseProjectStatus(s string) domain.ProjectStatus {
	switch s {
	case "completed", "complete", "done":
		return domain.ProjectStatusCompleted
	case "archived":
		return domain.ProjectStatusArchived
	}
	return domain.ProjectStatusActive
}

func statusPhrase(status string) string {
	switch status {
	case "in_progress":
		return "in progress"
	default:
		return status
	}
}
