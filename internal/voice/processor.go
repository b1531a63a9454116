package voice

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskvoice/backend/internal/domain"
	"github.com/taskvoice/backend/internal/ledger"
	"github.com/taskvoice/backend/internal/metrics"
	"github.com/taskvoice/backend/internal/notify"
	"github.com/taskvoice/backend/internal/provider"
)

// Metadata carries the request context echoed back with every result.
type Metadata struct {
	Language  string `json:"language"`
	AudioSize int    `json:"audio_size"`
	SessionID string `json:"session_id"`
}

// Result is the client-facing outcome of one processed voice command.
type Result struct {
	Success        bool              `json:"success"`
	Transcription  string            `json:"transcription"`
	Intent         string            `json:"intent"`
	Confidence     float64           `json:"confidence"`
	Entities       map[string]string `json:"entities"`
	Response       string            `json:"response"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	ProcessingTime float64           `json:"processing_time"`
	VoiceMetadata  Metadata          `json:"voice_metadata"`
}

// Analysis is the outcome of transcript-only classification, with no
// action taken.
type Analysis struct {
	Transcription string            `json:"transcription"`
	Intent        string            `json:"intent"`
	Confidence    float64           `json:"confidence"`
	Entities      map[string]string `json:"entities"`
	Source        MatchSource       `json:"source"`
}

// Processor runs the full pipeline for one command: validate,
// transcribe, classify, dispatch, respond, record.
type Processor struct {
	validator   *Validator
	transcriber provider.Transcriber
	classifier  *Classifier
	dispatcher  *Dispatcher
	responder   *Responder
	ledger      *ledger.Ledger
	sink        notify.Sink

	providerTimeout time.Duration
}

func NewProcessor(
	validator *Validator,
	transcriber provider.Transcriber,
	classifier *Classifier,
	dispatcher *Dispatcher,
	responder *Responder,
	ledger *ledger.Ledger,
	sink notify.Sink,
	providerTimeout time.Duration,
) *Processor {
	return &Processor{
		validator:       validator,
		transcriber:     transcriber,
		classifier:      classifier,
		dispatcher:      dispatcher,
		responder:       responder,
		ledger:          ledger,
		sink:            sink,
		providerTimeout: providerTimeout,
	}
}

// notifiable intents create user-visible changes worth an alert.
var notifiableIntents = map[domain.Intent]bool{
	domain.IntentCreateTask:    true,
	domain.IntentCompleteTask:  true,
	domain.IntentCreateProject: true,
}

// Process runs one command through the pipeline. The command must be in
// the Processing state; Process finalizes it exactly once and records
// it in the ledger. ctx carries the owning session's lifetime: if it is
// cancelled between stages the command finalizes Cancelled and skips
// analytics. Session counters are folded by the session handle after
// Process returns, under its own lock.
func (p *Processor) Process(ctx context.Context, cmd *domain.Command, audio []byte) *Result {
	cmd.AudioSize = len(audio)

	if ctx.Err() != nil {
		return p.cancel(cmd)
	}

	if err := p.validator.Validate(audio); err != nil {
		metrics.StageErrors.WithLabelValues("validation").Inc()
		return p.fail(ctx, cmd, err.Error())
	}

	transcript, err := p.transcribe(ctx, audio, cmd.Language)
	if err != nil {
		if ctx.Err() != nil {
			return p.cancel(cmd)
		}
		metrics.StageErrors.WithLabelValues("transcription").Inc()
		slog.Error("transcription failed", "command_id", cmd.ID, "error", err)
		return p.fail(ctx, cmd, "could not transcribe audio")
	}
	cmd.Transcript = transcript

	if ctx.Err() != nil {
		return p.cancel(cmd)
	}

	match := p.classify(ctx, transcript)
	cmd.Intent = match.Intent
	cmd.Confidence = match.Confidence
	cmd.Entities = match.Entities

	if ctx.Err() != nil {
		return p.cancel(cmd)
	}

	start := time.Now()
	outcome := p.dispatcher.Dispatch(ctx, match.Intent, match.Entities, cmd.UserID)
	metrics.StageDuration.WithLabelValues("dispatch").Observe(time.Since(start).Seconds())

	if ctx.Err() != nil {
		return p.cancel(cmd)
	}

	start = time.Now()
	response := p.responder.Respond(ctx, transcript, match.Intent, outcome)
	cmd.ResponseTime = time.Since(start)
	metrics.StageDuration.WithLabelValues("respond").Observe(cmd.ResponseTime.Seconds())

	if outcome.Success {
		cmd.MarkSuccess(response)
	} else {
		cmd.Response = response
		cmd.MarkFailed(outcome.Message)
	}
	p.ledger.Record(ctx, cmd)
	metrics.CommandsTotal.WithLabelValues(string(cmd.Status), string(cmd.Intent)).Inc()
	p.notifyOutcome(cmd, outcome)

	return p.result(cmd)
}

// Analyze classifies a transcript without dispatching or recording.
func (p *Processor) Analyze(ctx context.Context, transcript string) *Analysis {
	match := p.classify(ctx, transcript)
	return &Analysis{
		Transcription: transcript,
		Intent:        string(match.Intent),
		Confidence:    match.Confidence,
		Entities:      match.Entities,
		Source:        match.Source,
	}
}

// Cancel finalizes a command that will never run, recording it without
// analytics. Used for jobs still queued when a session closes.
func (p *Processor) Cancel(cmd *domain.Command) *Result {
	return p.cancel(cmd)
}

func (p *Processor) transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.providerTimeout)
	defer cancel()

	start := time.Now()
	tr, err := p.transcriber.Transcribe(ctx, audio, language)
	metrics.StageDuration.WithLabelValues("transcription").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return tr.Text, nil
}

func (p *Processor) classify(ctx context.Context, transcript string) *Match {
	ctx, cancel := context.WithTimeout(ctx, p.providerTimeout)
	defer cancel()

	start := time.Now()
	match := p.classifier.Classify(ctx, transcript)
	metrics.StageDuration.WithLabelValues("classification").Observe(time.Since(start).Seconds())
	return match
}

func (p *Processor) fail(ctx context.Context, cmd *domain.Command, message string) *Result {
	cmd.Response = fallbackApology
	cmd.MarkFailed(message)
	p.ledger.Record(ctx, cmd)
	metrics.CommandsTotal.WithLabelValues(string(cmd.Status), string(cmd.Intent)).Inc()
	return p.result(cmd)
}

func (p *Processor) cancel(cmd *domain.Command) *Result {
	cmd.ErrorMessage = "session closed before command completed"
	cmd.MarkCancelled()
	p.ledger.Record(context.Background(), cmd)
	metrics.CommandsTotal.WithLabelValues(string(cmd.Status), string(cmd.Intent)).Inc()
	return p.result(cmd)
}

// notifyOutcome fires alerts off the command path. Only mutating
// intents alert on success; every dispatch failure alerts.
func (p *Processor) notifyOutcome(cmd *domain.Command, outcome Outcome) {
	if p.sink == nil {
		return
	}

	var n *domain.Notification
	switch {
	case cmd.Status == domain.CommandStatusSuccess && notifiableIntents[cmd.Intent]:
		n = notify.CommandProcessed(cmd, outcome.Message)
	case cmd.Status == domain.CommandStatusFailed:
		n = notify.CommandFailed(cmd)
	default:
		return
	}
	go p.sink.Notify(context.Background(), n)
}

func (p *Processor) result(cmd *domain.Command) *Result {
	return &Result{
		Success:        cmd.Status == domain.CommandStatusSuccess,
		Transcription:  cmd.Transcript,
		Intent:         string(cmd.Intent),
		Confidence:     cmd.Confidence,
		Entities:       cmd.Entities,
		Response:       cmd.Response,
		ErrorMessage:   cmd.ErrorMessage,
		ProcessingTime: cmd.ProcessingTime.Seconds(),
		VoiceMetadata: Metadata{
			Language:  cmd.Language,
			AudioSize: cmd.AudioSize,
			SessionID: cmd.SessionID,
		},
	}
}
