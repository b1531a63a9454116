package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taskvoice/backend/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed store.
func NewSQLite(dbPath string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'en-US',
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		project_id TEXT,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		assignee TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id, title);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id, name);

	CREATE TABLE IF NOT EXISTS voice_commands (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		transcript TEXT NOT NULL,
		intent TEXT,
		status TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		entities_json TEXT NOT NULL DEFAULT '{}',
		response TEXT,
		error_message TEXT,
		feedback TEXT,
		language TEXT,
		audio_size INTEGER NOT NULL DEFAULT 0,
		processing_ms INTEGER NOT NULL DEFAULT 0,
		response_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		finalized_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_commands_session ON voice_commands(session_id, created_at);

	CREATE TABLE IF NOT EXISTS voice_analytics (
		user_id TEXT NOT NULL,
		period TEXT NOT NULL,
		total_commands INTEGER NOT NULL,
		successful_commands INTEGER NOT NULL,
		failed_commands INTEGER NOT NULL,
		avg_confidence REAL NOT NULL,
		avg_processing_time REAL NOT NULL,
		avg_response_time REAL NOT NULL,
		intent_counts_json TEXT NOT NULL DEFAULT '{}',
		language_counts_json TEXT NOT NULL DEFAULT '{}',
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, period)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		priority TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		data_json TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUser retrieves a user by their user ID. Returns nil, nil when the
// user does not exist.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, language, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &user.Language, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, language, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		language = excluded.language,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	lang := user.Language
	if lang == "" {
		lang = "en-US"
	}

	_, err := s.execRetry(ctx, query,
		user.UserID, user.Username, lang,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.execRetry(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}
	return nil
}

// CreateTask inserts a new task.
func (s *SQLiteStore) CreateTask(ctx context.Context, task *domain.Task) error {
	if strings.TrimSpace(task.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}

	query := `
	INSERT INTO tasks (id, user_id, project_id, title, status, assignee, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.execRetry(ctx, query,
		task.ID, task.UserID, nullable(task.ProjectID), task.Title,
		string(task.Status), nullable(task.Assignee),
		task.CreatedAt.Unix(), task.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTaskByTitle finds a user's task by case-insensitive title.
func (s *SQLiteStore) GetTaskByTitle(ctx context.Context, userID, title string) (*domain.Task, error) {
	query := `
		SELECT id, user_id, project_id, title, status, assignee, created_at, updated_at
		FROM tasks WHERE user_id = ? AND title = ? COLLATE NOCASE
		ORDER BY created_at DESC LIMIT 1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, userID, title))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %q: %w", title, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan task row: %w", err)
	}
	return task, nil
}

// UpdateTask rewrites a task's mutable fields.
func (s *SQLiteStore) UpdateTask(ctx context.Context, task *domain.Task) error {
	query := `
	UPDATE tasks SET title = ?, status = ?, assignee = ?, project_id = ?, updated_at = ?
	WHERE id = ?`

	result, err := s.execRetry(ctx, query,
		task.Title, string(task.Status), nullable(task.Assignee),
		nullable(task.ProjectID), time.Now().Unix(), task.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", task.ID, ErrNotFound)
	}
	return nil
}

// ListTasks returns all tasks for a user, newest first.
func (s *SQLiteStore) ListTasks(ctx context.Context, userID string) ([]*domain.Task, error) {
	query := `
		SELECT id, user_id, project_id, title, status, assignee, created_at, updated_at
		FROM tasks WHERE user_id = ? ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer closeRows(rows, "tasks")

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// CreateProject inserts a new project.
func (s *SQLiteStore) CreateProject(ctx context.Context, project *domain.Project) error {
	if strings.TrimSpace(project.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	query := `
	INSERT INTO projects (id, user_id, name, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.execRetry(ctx, query,
		project.ID, project.UserID, project.Name, string(project.Status),
		project.CreatedAt.Unix(), project.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetProjectByName finds a user's project by case-insensitive name.
func (s *SQLiteStore) GetProjectByName(ctx context.Context, userID, name string) (*domain.Project, error) {
	query := `
		SELECT id, user_id, name, status, created_at, updated_at
		FROM projects WHERE user_id = ? AND name = ? COLLATE NOCASE
		ORDER BY created_at DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, userID, name)

	var p domain.Project
	var status string
	var createdAt, updatedAt int64

	err := row.Scan(&p.ID, &p.UserID, &p.Name, &status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan project row: %w", err)
	}

	p.Status = domain.ProjectStatus(status)
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// UpdateProject rewrites a project's mutable fields.
func (s *SQLiteStore) UpdateProject(ctx context.Context, project *domain.Project) error {
	query := `UPDATE projects SET name = ?, status = ?, updated_at = ? WHERE id = ?`
	result, err := s.execRetry(ctx, query,
		project.Name, string(project.Status), time.Now().Unix(), project.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("project %s: %w", project.ID, ErrNotFound)
	}
	return nil
}

// ListProjects returns all projects for a user, newest first.
func (s *SQLiteStore) ListProjects(ctx context.Context, userID string) ([]*domain.Project, error) {
	query := `
		SELECT id, user_id, name, status, created_at, updated_at
		FROM projects WHERE user_id = ? ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer closeRows(rows, "projects")

	var projects []*domain.Project
	for rows.Next() {
		var p domain.Project
		var status string
		var createdAt, updatedAt int64
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		p.Status = domain.ProjectStatus(status)
		p.CreatedAt = time.Unix(createdAt, 0)
		p.UpdatedAt = time.Unix(updatedAt, 0)
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

// AppendCommand writes a finalized command to the ledger.
func (s *SQLiteStore) AppendCommand(ctx context.Context, cmd *domain.Command) error {
	entities, err := json.Marshal(cmd.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}

	var finalizedAt interface{}
	if cmd.FinalizedAt != nil {
		finalizedAt = cmd.FinalizedAt.Unix()
	}

	query := `
	INSERT INTO voice_commands (
		id, session_id, user_id, transcript, intent, status, confidence,
		entities_json, response, error_message, language, audio_size,
		processing_ms, response_ms, created_at, finalized_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.execRetry(ctx, query,
		cmd.ID, cmd.SessionID, cmd.UserID, cmd.Transcript,
		string(cmd.Intent), string(cmd.Status), cmd.Confidence,
		string(entities), nullable(cmd.Response), nullable(cmd.ErrorMessage),
		nullable(cmd.Language), cmd.AudioSize,
		cmd.ProcessingTime.Milliseconds(), cmd.ResponseTime.Milliseconds(),
		cmd.CreatedAt.Unix(), finalizedAt,
	)
	if err != nil {
		return fmt.Errorf("append command: %w", err)
	}
	return nil
}

// GetCommand retrieves a single ledger entry.
func (s *SQLiteStore) GetCommand(ctx context.Context, id string) (*domain.Command, error) {
	query := commandSelect + ` WHERE id = ?`
	cmd, err := scanCommand(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("command %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan command row: %w", err)
	}
	return cmd, nil
}

// ListSessionCommands returns a session's ledger in submission order.
func (s *SQLiteStore) ListSessionCommands(ctx context.Context, sessionID string) ([]*domain.Command, error) {
	query := commandSelect + ` WHERE session_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session commands: %w", err)
	}
	defer closeRows(rows, "commands")

	var cmds []*domain.Command
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan command row: %w", err)
		}
		cmds = append(cmds, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commands: %w", err)
	}
	return cmds, nil
}

// SetCommandFeedback attaches user feedback to a past command.
func (s *SQLiteStore) SetCommandFeedback(ctx context.Context, commandID, feedback string) error {
	query := `UPDATE voice_commands SET feedback = ? WHERE id = ?`
	result, err := s.execRetry(ctx, query, feedback, commandID)
	if err != nil {
		return fmt.Errorf("set command feedback: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("command %s: %w", commandID, ErrNotFound)
	}
	return nil
}

// SaveAnalytics writes a snapshot of an analytics bucket.
func (s *SQLiteStore) SaveAnalytics(ctx context.Context, bucket *domain.AnalyticsBucket) error {
	intents, err := json.Marshal(bucket.IntentCounts)
	if err != nil {
		return fmt.Errorf("marshal intent counts: %w", err)
	}
	languages, err := json.Marshal(bucket.LanguageCounts)
	if err != nil {
		return fmt.Errorf("marshal language counts: %w", err)
	}

	query := `
	INSERT INTO voice_analytics (
		user_id, period, total_commands, successful_commands, failed_commands,
		avg_confidence, avg_processing_time, avg_response_time,
		intent_counts_json, language_counts_json, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, period) DO UPDATE SET
		total_commands = excluded.total_commands,
		successful_commands = excluded.successful_commands,
		failed_commands = excluded.failed_commands,
		avg_confidence = excluded.avg_confidence,
		avg_processing_time = excluded.avg_processing_time,
		avg_response_time = excluded.avg_response_time,
		intent_counts_json = excluded.intent_counts_json,
		language_counts_json = excluded.language_counts_json,
		updated_at = excluded.updated_at`

	_, err = s.execRetry(ctx, query,
		bucket.UserID, bucket.Period,
		bucket.TotalCommands, bucket.SuccessfulCommands, bucket.FailedCommands,
		bucket.AvgConfidence, bucket.AvgProcessingTime, bucket.AvgResponseTime,
		string(intents), string(languages), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save analytics: %w", err)
	}
	return nil
}

// GetAnalytics retrieves a user's bucket for one period.
func (s *SQLiteStore) GetAnalytics(ctx context.Context, userID, period string) (*domain.AnalyticsBucket, error) {
	query := `
		SELECT user_id, period, total_commands, successful_commands, failed_commands,
		       avg_confidence, avg_processing_time, avg_response_time,
		       intent_counts_json, language_counts_json, updated_at
		FROM voice_analytics WHERE user_id = ? AND period = ?`

	row := s.db.QueryRowContext(ctx, query, userID, period)

	var b domain.AnalyticsBucket
	var intentsJSON, languagesJSON string
	var updatedAt int64

	err := row.Scan(
		&b.UserID, &b.Period, &b.TotalCommands, &b.SuccessfulCommands, &b.FailedCommands,
		&b.AvgConfidence, &b.AvgProcessingTime, &b.AvgResponseTime,
		&intentsJSON, &languagesJSON, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analytics %s/%s: %w", userID, period, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan analytics row: %w", err)
	}

	if err := json.Unmarshal([]byte(intentsJSON), &b.IntentCounts); err != nil {
		return nil, fmt.Errorf("unmarshal intent counts: %w", err)
	}
	if err := json.Unmarshal([]byte(languagesJSON), &b.LanguageCounts); err != nil {
		return nil, fmt.Errorf("unmarshal language counts: %w", err)
	}
	b.UpdatedAt = time.Unix(updatedAt, 0)
	return &b, nil
}

// CreateNotification persists a user notification record.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	query := `
	INSERT INTO notifications (id, user_id, type, priority, title, message, data_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	data := n.DataJSON
	if data == "" {
		data = "{}"
	}

	_, err := s.execRetry(ctx, query,
		n.ID, n.UserID, string(n.Type), string(n.Priority),
		n.Title, n.Message, data, n.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

const commandSelect = `
	SELECT id, session_id, user_id, transcript, intent, status, confidence,
	       entities_json, response, error_message, feedback, language,
	       audio_size, processing_ms, response_ms, created_at, finalized_at
	FROM voice_commands`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCommand(row rowScanner) (*domain.Command, error) {
	var cmd domain.Command
	var intent, status, entitiesJSON string
	var response, errorMessage, feedback, language sql.NullString
	var processingMs, responseMs, createdAt int64
	var finalizedAt sql.NullInt64

	err := row.Scan(
		&cmd.ID, &cmd.SessionID, &cmd.UserID, &cmd.Transcript,
		&intent, &status, &cmd.Confidence, &entitiesJSON,
		&response, &errorMessage, &feedback, &language,
		&cmd.AudioSize, &processingMs, &responseMs, &createdAt, &finalizedAt,
	)
	if err != nil {
		return nil, err
	}

	cmd.Intent = domain.Intent(intent)
	cmd.Status = domain.CommandStatus(status)
	cmd.Response = response.String
	cmd.ErrorMessage = errorMessage.String
	cmd.Feedback = feedback.String
	cmd.Language = language.String
	cmd.ProcessingTime = time.Duration(processingMs) * time.Millisecond
	cmd.ResponseTime = time.Duration(responseMs) * time.Millisecond
	cmd.CreatedAt = time.Unix(createdAt, 0)
	if finalizedAt.Valid {
		ts := time.Unix(finalizedAt.Int64, 0)
		cmd.FinalizedAt = &ts
	}
	if err := json.Unmarshal([]byte(entitiesJSON), &cmd.Entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}
	return &cmd, nil
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var projectID, assignee sql.NullString
	var status string
	var createdAt, updatedAt int64

	err := row.Scan(&task.ID, &task.UserID, &projectID, &task.Title, &status, &assignee, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	task.ProjectID = projectID.String
	task.Assignee = assignee.String
	task.Status = domain.TaskStatus(status)
	task.CreatedAt = time.Unix(createdAt, 0)
	task.UpdatedAt = time.Unix(updatedAt, 0)
	return &task, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "what", what, "error", err)
	}
}
