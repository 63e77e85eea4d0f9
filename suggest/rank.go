package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mlaihq/pesto/graph"
)

// Candidate is one user consolidated across every topic that matched
// them in a single suggestion cycle. It lives only for the duration of
// that cycle.
type Candidate struct {
	UserID string
	Name   string
	// Best is the strongest relationship seen across all matched edges.
	Best graph.Relationship
	// ActivityLevel accumulates the edge counters of every matched
	// edge; it is the tie-break within a relationship tier.
	ActivityLevel int
	// Topics lists the canonical topics this user matched, in
	// first-seen order.
	Topics []string
}

// Ranker queries the graph for users related to an expanded topic set.
// Per-topic failures degrade to zero results for that topic; only the
// surviving topics appear in the returned map.
type Ranker struct {
	reader graph.Reader
	log    *slog.Logger
}

type RankerOptions struct {
	Reader graph.Reader
	Logger *slog.Logger
}

func NewRanker(opts RankerOptions) (*Ranker, error) {
	if opts.Reader == nil {
		return nil, fmt.Errorf("graph reader is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Ranker{reader: opts.Reader, log: log}, nil
}

// Rank fetches ranked edges for each expanded topic. A total
// connectivity failure yields an empty map, which callers treat as "no
// suggestions", not as an error.
func (r *Ranker) Rank(ctx context.Context, expandedTopics []string, excludeUserID string, limitPerTopic int) map[string][]graph.Edge {
	out := make(map[string][]graph.Edge, len(expandedTopics))
	for _, topic := range expandedTopics {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		edges, err := r.reader.UsersForTopic(ctx, topic, excludeUserID, limitPerTopic)
		if err != nil {
			r.log.Warn("rank_topic_error", "topic", topic, "error", err.Error())
			continue
		}
		if len(edges) > 0 {
			out[topic] = edges
		}
	}
	return out
}

// Consolidate merges per-topic edges into one Candidate per user and
// sorts them: strongest relationship tier first, accumulated activity
// as the only tie-break within a tier. The sort is stable, so ties
// keep the per-topic iteration order.
//
// Found topics map back to canonical ones by case-insensitive substring
// match in either direction; the first canonical topic (input order)
// that matches wins.
func Consolidate(byTopic map[string][]graph.Edge, canonicalTopics []string) []Candidate {
	// Iterate found topics deterministically: canonical matches in
	// input order first, then the rest alphabetically.
	foundTopics := make([]string, 0, len(byTopic))
	for topic := range byTopic {
		foundTopics = append(foundTopics, topic)
	}
	sort.Slice(foundTopics, func(i, j int) bool {
		ci := canonicalRank(foundTopics[i], canonicalTopics)
		cj := canonicalRank(foundTopics[j], canonicalTopics)
		if ci != cj {
			return ci < cj
		}
		return foundTopics[i] < foundTopics[j]
	})

	byUser := make(map[string]*Candidate)
	order := make([]string, 0, 16)
	for _, found := range foundTopics {
		canonical := canonicalFor(found, canonicalTopics)
		for _, edge := range byTopic[found] {
			cand, ok := byUser[edge.UserID]
			if !ok {
				cand = &Candidate{
					UserID: edge.UserID,
					Name:   edge.UserName,
					Best:   edge.Relationship,
				}
				byUser[edge.UserID] = cand
				order = append(order, edge.UserID)
			}
			if edge.Relationship.Priority() < cand.Best.Priority() {
				cand.Best = edge.Relationship
			}
			cand.ActivityLevel += edge.ActivityLevel
			if !containsString(cand.Topics, canonical) {
				cand.Topics = append(cand.Topics, canonical)
			}
		}
	}

	out := make([]Candidate, 0, len(order))
	for _, userID := range order {
		out = append(out, *byUser[userID])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Best.Priority() != out[j].Best.Priority() {
			return out[i].Best.Priority() < out[j].Best.Priority()
		}
		return out[i].ActivityLevel > out[j].ActivityLevel
	})
	return out
}

// canonicalFor maps a found topic to its canonical label. Falls back to
// the found topic itself when nothing matches.
func canonicalFor(found string, canonicalTopics []string) string {
	foundLower := strings.ToLower(found)
	for _, canonical := range canonicalTopics {
		canonicalLower := strings.ToLower(canonical)
		if strings.Contains(foundLower, canonicalLower) || strings.Contains(canonicalLower, foundLower) {
			return canonical
		}
	}
	return found
}

func canonicalRank(found string, canonicalTopics []string) int {
	foundLower := strings.ToLower(found)
	for i, canonical := range canonicalTopics {
		canonicalLower := strings.ToLower(canonical)
		if strings.Contains(foundLower, canonicalLower) || strings.Contains(canonicalLower, foundLower) {
			return i
		}
	}
	return len(canonicalTopics)
}

func containsString(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}
	return false
}
