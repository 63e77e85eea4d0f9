// Package graph models the community knowledge graph: users connected to
// discussion topics by typed relationships, backed by Neo4j.
package graph

import (
	"context"
	"strings"
)

// Relationship is the type of a (User)-[...]->(Topic) edge. The zero
// value is Mentions, the weakest tie.
type Relationship int

const (
	Mentions Relationship = iota
	InterestedIn
	WorkingOn
	Expert
)

const (
	labelExpert       = "IS_EXPERT_IN"
	labelWorkingOn    = "WORKING_ON"
	labelInterestedIn = "INTERESTED_IN"
	labelMentions     = "MENTIONS"
)

// Label returns the edge label stored in the graph.
func (r Relationship) Label() string {
	switch r {
	case Expert:
		return labelExpert
	case WorkingOn:
		return labelWorkingOn
	case InterestedIn:
		return labelInterestedIn
	default:
		return labelMentions
	}
}

func (r Relationship) String() string { return r.Label() }

// Priority ranks relationship types for candidate ordering. Lower is
// stronger: expert=1, working=2, interested=3, mentions=4.
func (r Relationship) Priority() int {
	switch r {
	case Expert:
		return 1
	case WorkingOn:
		return 2
	case InterestedIn:
		return 3
	default:
		return 4
	}
}

// ParseRelationship maps an edge label back to its Relationship. Unknown
// labels normalize to Mentions rather than failing; classifier output is
// not trusted to be well formed.
func ParseRelationship(label string) Relationship {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case labelExpert:
		return Expert
	case labelWorkingOn:
		return WorkingOn
	case labelInterestedIn:
		return InterestedIn
	default:
		return Mentions
	}
}

// AllRelationships lists every edge type, strongest first.
func AllRelationships() []Relationship {
	return []Relationship{Expert, WorkingOn, InterestedIn, Mentions}
}

// Edge is one observed (User)-[Relationship]->(Topic) connection.
type Edge struct {
	UserID        string
	UserName      string
	Relationship  Relationship
	ActivityLevel int
	LastActivity  string
}

// Interest pairs a topic with the relationship a user holds toward it.
type Interest struct {
	Topic        string
	Relationship Relationship
}

// Reader fetches ranked edges into a topic.
type Reader interface {
	// UsersForTopic returns edges into the named topic, excluding
	// excludeUserID, ordered by relationship priority ascending then
	// activity level descending then last activity descending, truncated
	// to limit.
	UsersForTopic(ctx context.Context, topic, excludeUserID string, limit int) ([]Edge, error)
}

// Writer upserts user-topic edges. Repeated observations of the same
// (user, topic, relationship) increment the edge counter and advance its
// last-activity timestamp instead of duplicating the edge.
type Writer interface {
	UpsertMentions(ctx context.Context, userID, displayName string, topics []string, ts string) error
	UpsertInterests(ctx context.Context, userID, displayName string, interests []Interest, ts string) error
}

// Store combines both sides of the graph contract.
type Store interface {
	Reader
	Writer
}
