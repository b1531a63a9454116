// Package session manages voice session lifecycle: admission control,
// per-session command serialization, and idle/timeout sweeping.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskvoice/backend/internal/domain"
	"github.com/taskvoice/backend/internal/metrics"
	"github.com/taskvoice/backend/internal/voice"
)

// ErrSessionClosed is returned when submitting to a closed session.
var ErrSessionClosed = errors.New("session closed")

// ErrQueueFull is returned when a session's command queue is at
// capacity; the caller should back off rather than block.
var ErrQueueFull = errors.New("session command queue full")

// AdmissionError rejects a session request at the door.
type AdmissionError struct {
	Capacity int
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("session capacity reached (%d concurrent sessions)", e.Capacity)
}

// job is one queued voice command awaiting the session worker.
type job struct {
	cmd    *domain.Command
	audio  []byte
	result chan *voice.Result
}

// Handle is the registry's live wrapper around one session. Commands
// submitted to a handle run strictly one at a time, in order, on the
// session's worker goroutine.
type Handle struct {
	sess *domain.Session
	reg  *Registry

	ctx    context.Context
	cancel context.CancelFunc
	jobs   chan job
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Registry tracks all live sessions and enforces the concurrency cap.
type Registry struct {
	processor *voice.Processor
	capacity  int
	queueSize int

	mu       sync.Mutex
	sessions map[string]*Handle
}

func NewRegistry(processor *voice.Processor, capacity, queueSize int) *Registry {
	return &Registry{
		processor: processor,
		capacity:  capacity,
		queueSize: queueSize,
		sessions:  make(map[string]*Handle),
	}
}

// Open admits a new session for a user, or rejects it when the number
// of open sessions is already at capacity. Ended sessions do not count;
// a user may hold several open sessions at once.
func (r *Registry) Open(userID, language string) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	open := 0
	for _, h := range r.sessions {
		if h.status().Open() {
			open++
		}
	}
	if open >= r.capacity {
		metrics.AdmissionRejections.Inc()
		slog.Warn("session rejected at capacity", "user_id", userID, "capacity", r.capacity)
		return nil, &AdmissionError{Capacity: r.capacity}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		sess:   domain.NewSession(uuid.NewString(), userID, language),
		reg:    r,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(chan job, r.queueSize),
		done:   make(chan struct{}),
	}
	r.sessions[h.sess.ID] = h
	go h.work(r.processor)

	metrics.SessionsActive.Inc()
	slog.Info("session opened", "session_id", h.sess.ID, "user_id", userID)
	return h, nil
}

// Get returns the handle for a session ID, or nil.
func (r *Registry) Get(sessionID string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID]
}

// CloseAll ends every live session, used during shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.sessions))
	for _, h := range r.sessions {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}
}

func (r *Registry) remove(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// handles returns a snapshot of the live handles for the sweeper.
func (r *Registry) handles() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, 0, len(r.sessions))
	for _, h := range r.sessions {
		out = append(out, h)
	}
	return out
}

// Summary returns a copy of the session state. Safe to call while the
// worker is processing; the copy never changes under the caller.
func (h *Handle) Summary() domain.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return *h.sess
}

func (h *Handle) status() domain.SessionStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess.Status
}

// ID returns the session identifier.
func (h *Handle) ID() string { return h.sess.ID }

// Submit enqueues one audio payload for processing. The command record
// is created here, before the worker picks the job up, so commands
// still queued when the session closes are finalized as cancelled
// rather than silently dropped. The returned channel delivers exactly
// one result.
func (h *Handle) Submit(audio []byte) (*domain.Command, <-chan *voice.Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, nil, ErrSessionClosed
	}
	h.sess.Touch()
	cmd := domain.NewCommand(uuid.NewString(), h.sess.ID, h.sess.UserID, h.sess.Language)
	cmd.AudioSize = len(audio)

	// Non-blocking send under the lock: Close also takes the lock before
	// closing the channel, so a send can never race the close.
	j := job{cmd: cmd, audio: audio, result: make(chan *voice.Result, 1)}
	select {
	case h.jobs <- j:
		return cmd, j.result, nil
	default:
		return nil, nil, ErrQueueFull
	}
}

// Touch resets the inactivity clock without submitting work.
func (h *Handle) Touch() {
	h.mu.Lock()
	h.sess.Touch()
	h.mu.Unlock()
}

// Close ends the session. The worker drains any queued commands as
// cancelled before exiting. Safe to call more than once.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	if h.sess.Status != domain.SessionStatusError {
		h.sess.End()
	}
	h.mu.Unlock()

	h.cancel()
	close(h.jobs)
	<-h.done

	h.reg.remove(h.sess.ID)
	metrics.SessionsActive.Dec()
	sum := h.Summary()
	slog.Info("session closed",
		"session_id", sum.ID,
		"user_id", sum.UserID,
		"commands_processed", sum.CommandsProcessed,
		"error_count", sum.ErrorCount,
	)
}

// work is the session's single worker goroutine. It owns command
// execution order: jobs run one at a time in submission order.
func (h *Handle) work(processor *voice.Processor) {
	defer close(h.done)
	defer h.recoverPanic()

	for j := range h.jobs {
		var res *voice.Result
		if h.ctx.Err() != nil {
			res = processor.Cancel(j.cmd)
		} else {
			res = processor.Process(h.ctx, j.cmd, j.audio)
			h.recordOutcome(j.cmd)
		}
		j.result <- res
	}
}

// recordOutcome folds a finalized command into the session counters.
// Taking the handle lock here keeps the worker's writes ordered against
// Summary reads from the channel and the sweeper.
func (h *Handle) recordOutcome(cmd *domain.Command) {
	h.mu.Lock()
	h.sess.RecordCommand(cmd)
	h.mu.Unlock()
}

// recoverPanic converts a worker panic into an errored session instead
// of taking the process down. Queued jobs are abandoned; their result
// channels stay empty and callers observe the session as closed.
func (h *Handle) recoverPanic() {
	rec := recover()
	if rec == nil {
		return
	}
	slog.Error("session worker panic", "session_id", h.sess.ID, "panic", rec)

	h.mu.Lock()
	h.sess.Status = domain.SessionStatusError
	h.mu.Unlock()
	go h.Close()
}

// Sweeper periodically walks live sessions, marking quiet ones idle and
// closing ones inactive past the timeout.
type Sweeper struct {
	registry  *Registry
	idleAfter time.Duration
	timeout   time.Duration
	interval  time.Duration
}

func NewSweeper(registry *Registry, idleAfter, timeout, interval time.Duration) *Sweeper {
	return &Sweeper{
		registry:  registry,
		idleAfter: idleAfter,
		timeout:   timeout,
		interval:  interval,
	}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	slog.Info("session sweeper started", "interval", s.interval, "idle_after", s.idleAfter, "timeout", s.timeout)

	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-ctx.Done():
			slog.Info("session sweeper shutting down", "reason", ctx.Err())
			return
		}
	}
}

func (s *Sweeper) sweep(now time.Time) {
	for _, h := range s.registry.handles() {
		h.mu.Lock()
		inactive := h.sess.InactiveFor(now)
		expired := inactive >= s.timeout
		if !expired && h.sess.Status == domain.SessionStatusActive && inactive >= s.idleAfter {
			h.sess.Status = domain.SessionStatusIdle
			slog.Info("session idle", "session_id", h.sess.ID, "inactive", inactive)
		}
		h.mu.Unlock()

		if expired {
			slog.Info("session expired", "session_id", h.sess.ID, "inactive", inactive)
			h.Close()
		}
	}
}
