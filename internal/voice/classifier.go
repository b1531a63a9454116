package voice

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/taskvoice/backend/internal/domain"
	"github.com/taskvoice/backend/internal/provider"
)

// MatchSource tags which classifier tier produced a match.
type MatchSource string

const (
	SourcePattern  MatchSource = "pattern"
	SourceFallback MatchSource = "fallback"
)

// Match is the transient result of intent classification.
type Match struct {
	Intent     domain.Intent
	Confidence float64
	Entities   map[string]string
	Source     MatchSource
}

// patternConfidence is the fixed confidence assigned to any deterministic
// pattern match.
const patternConfidence = 0.9

// rule binds one intent to its ordered pattern list and the named slot
// its first capture group fills (empty slot = no capture).
type rule struct {
	intent   domain.Intent
	slot     string
	patterns []*regexp.Regexp
}

// rules is the deterministic tier's table. Declaration order is the
// documented priority: when two intents reach the same confidence, the
// earlier entry wins.
var rules = []rule{
	{
		intent: domain.IntentCreateTask,
		slot:   "task_name",
		patterns: compile(
			`create.*task.*called\s+(.+)`,
			`add.*task.*called\s+(.+)`,
			`add.*task\s+(.+)`,
			`new.*task\s+(.+)`,
			`create.*task\s+(.+)`,
		),
	},
	{
		intent: domain.IntentCompleteTask,
		slot:   "task_name",
		patterns: compile(
			`mark\s+(.+)\s+as\s+complete`,
			`mark\s+(.+)\s+done`,
			`complete\s+(.+)`,
			`finish\s+(.+)`,
			`task\s+(.+)\s+complete`,
		),
	},
	{
		intent: domain.IntentCreateProject,
		slot:   "project_name",
		patterns: compile(
			`create.*project.*called\s+(.+)`,
			`new.*project\s+(.+)`,
			`start.*project\s+(.+)`,
			`create.*project\s+(.+)`,
		),
	},
	{
		intent: domain.IntentListTasks,
		patterns: compile(
			`show.*my.*tasks`,
			`list.*my.*tasks`,
			`what.*are.*my.*tasks`,
			`display.*tasks`,
			`get.*my.*tasks`,
		),
	},
	{
		intent: domain.IntentListProjects,
		patterns: compile(
			`show.*my.*projects`,
			`list.*my.*projects`,
			`what.*are.*my.*projects`,
			`display.*projects`,
			`get.*my.*projects`,
		),
	},
	{
		intent: domain.IntentGetStatus,
		slot:   "item_name",
		patterns: compile(
			`status.*of\s+(.+)`,
			`how.*is\s+(.+)`,
			`what.*status.*of\s+(.+)`,
			`check.*status.*of\s+(.+)`,
		),
	},
	{
		intent: domain.IntentHelp,
		patterns: compile(
			`^help$`,
			`what.*can.*i.*do`,
			`show.*commands`,
			`available.*commands`,
			`voice.*commands`,
		),
	},
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Classifier performs two-tier intent classification: a deterministic
// pattern table, then a generative fallback when the pattern tier is not
// confident enough.
type Classifier struct {
	fallback  provider.FallbackClassifier
	threshold float64
}

// NewClassifier creates a classifier. A nil fallback disables the second
// tier; transcripts the table cannot match stay Unknown.
func NewClassifier(fallback provider.FallbackClassifier, threshold float64) *Classifier {
	return &Classifier{fallback: fallback, threshold: threshold}
}

// Classify returns the best match for a transcript. It never fails:
// fallback provider errors and malformed replies degrade to Unknown
// with zero confidence.
func (c *Classifier) Classify(ctx context.Context, transcript string) *Match {
	best := c.patternMatch(transcript)
	if best.Confidence >= c.threshold {
		return best
	}
	return c.fallbackMatch(ctx, transcript, best)
}

// patternMatch scans the rule table in declaration order, keeping the
// single best match. A later rule replaces the best only on strictly
// higher confidence, which makes declaration order the tie-break.
func (c *Classifier) patternMatch(transcript string) *Match {
	lower := strings.ToLower(transcript)
	best := &Match{
		Intent:   domain.IntentUnknown,
		Entities: map[string]string{},
		Source:   SourcePattern,
	}

	for _, r := range rules {
		for _, p := range r.patterns {
			m := p.FindStringSubmatch(lower)
			if m == nil {
				continue
			}
			if patternConfidence > best.Confidence {
				best = &Match{
					Intent:     r.intent,
					Confidence: patternConfidence,
					Entities:   captureEntities(r, m),
					Source:     SourcePattern,
				}
			}
			break
		}
	}
	return best
}

// fallbackMatch invokes the generative tier. Any provider failure or
// unparseable reply downgrades to Unknown rather than raising.
func (c *Classifier) fallbackMatch(ctx context.Context, transcript string, best *Match) *Match {
	if c.fallback == nil {
		return best
	}

	result, err := c.fallback.Classify(ctx, transcript, vocabulary())
	if err != nil {
		slog.Warn("fallback classification failed", "error", err)
		return &Match{
			Intent:   domain.IntentUnknown,
			Entities: map[string]string{},
			Source:   SourceFallback,
		}
	}

	entities := result.Entities
	if entities == nil {
		entities = map[string]string{}
	}
	return &Match{
		Intent:     domain.ParseIntent(result.Intent),
		Confidence: clamp01(result.Confidence),
		Entities:   entities,
		Source:     SourceFallback,
	}
}

func vocabulary() []string {
	intents := domain.Intents()
	out := make([]string, len(intents))
	for i, it := range intents {
		out[i] = string(it)
	}
	return out
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
