// Package suggest implements the user-suggestion pipeline: topic
// expansion, graph-backed relevance ranking, cooldown filtering with
// trickle-down selection, and the admission gate in front of it all.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultMaxSuggestions is how many users one suggestion names.
const DefaultMaxSuggestions = 3

// overFetchFactor requests this many times more candidates per topic
// than the final suggestion size, so cooldown filtering still leaves
// enough survivors to fill the set (trickle-down).
const overFetchFactor = 3

// SuggestionSet is the transient output of one engine invocation:
// the ranked survivors plus the canonical topics that produced them.
type SuggestionSet struct {
	Topics     []string
	Candidates []Candidate
}

// Engine composes the expander, ranker and cooldown tracker into one
// "who should be suggested right now" decision.
//
// The engine never marks cooldowns itself; delivery confirmation is the
// caller's signal, and only users actually named in the delivered text
// get marked.
type Engine struct {
	expander       *Expander
	ranker         *Ranker
	cooldowns      *CooldownTracker
	maxSuggestions int
	log            *slog.Logger
}

type EngineOptions struct {
	Expander       *Expander
	Ranker         *Ranker
	Cooldowns      *CooldownTracker
	MaxSuggestions int
	Logger         *slog.Logger
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Expander == nil {
		return nil, fmt.Errorf("expander is required")
	}
	if opts.Ranker == nil {
		return nil, fmt.Errorf("ranker is required")
	}
	if opts.Cooldowns == nil {
		return nil, fmt.Errorf("cooldown tracker is required")
	}
	maxSuggestions := opts.MaxSuggestions
	if maxSuggestions <= 0 {
		maxSuggestions = DefaultMaxSuggestions
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		expander:       opts.Expander,
		ranker:         opts.Ranker,
		cooldowns:      opts.Cooldowns,
		maxSuggestions: maxSuggestions,
		log:            log,
	}, nil
}

// Cooldowns exposes the tracker so the delivery caller can mark users
// after a confirmed send.
func (e *Engine) Cooldowns() *CooldownTracker {
	return e.cooldowns
}

// Suggest returns up to MaxSuggestions candidates for the canonical
// topics, or nil when there is nothing to suggest. "Nothing relevant in
// the graph" and "everything relevant is cooling down" both come back
// as nil; the distinction is visible only in the logs. The engine fails
// closed: degraded collaborators shrink the result, they never raise.
func (e *Engine) Suggest(ctx context.Context, topics []string, excludeUserID string) *SuggestionSet {
	if len(topics) == 0 {
		return nil
	}
	e.log.Debug("suggest_start", "topics", topics, "exclude", excludeUserID)

	expanded := e.expander.Expand(ctx, topics)
	byTopic := e.ranker.Rank(ctx, expanded, excludeUserID, e.maxSuggestions*overFetchFactor)
	if len(byTopic) == 0 {
		e.log.Info("suggest_no_matches", "topics", topics, "expanded", len(expanded))
		return nil
	}

	sorted := Consolidate(byTopic, topics)

	// Filter in sorted order; survivors keep their relative order, so
	// lower-ranked candidates trickle up into freed slots.
	available := make([]Candidate, 0, len(sorted))
	suppressed := 0
	for rank, cand := range sorted {
		if e.cooldowns.IsInCooldown(cand.UserID) {
			suppressed++
			e.log.Debug("suggest_cooldown_filtered",
				"user_id", cand.UserID,
				"original_rank", rank+1,
				"remaining", e.cooldowns.Remaining(cand.UserID).String(),
			)
			continue
		}
		available = append(available, cand)
	}

	if len(available) == 0 {
		e.log.Info("suggest_all_in_cooldown", "topics", topics, "suppressed", suppressed)
		return nil
	}

	selected := available
	if len(selected) > e.maxSuggestions {
		selected = selected[:e.maxSuggestions]
	}
	e.log.Info("suggest_done",
		"topics", topics,
		"pool", len(sorted),
		"suppressed", suppressed,
		"selected", len(selected),
	)
	return &SuggestionSet{
		Topics:     append([]string(nil), topics...),
		Candidates: append([]Candidate(nil), selected...),
	}
}
