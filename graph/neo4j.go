package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Neo4jOptions struct {
	URI      string
	Username string
	Password string
	Logger   *slog.Logger
}

// Neo4jStore implements Store against a Neo4j instance.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	log    *slog.Logger
}

func NewNeo4jStore(ctx context.Context, opts Neo4jOptions) (*Neo4jStore, error) {
	uri := strings.TrimSpace(opts.URI)
	if uri == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}
	username := strings.TrimSpace(opts.Username)
	if username == "" {
		username = "neo4j"
	}
	if strings.TrimSpace(opts.Password) == "" {
		return nil, fmt.Errorf("neo4j password is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, opts.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	log.Info("neo4j_connected", "uri", uri)
	return &Neo4jStore{driver: driver, log: log}, nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.driver.Close(ctx)
}

// EnsureConstraints adds uniqueness constraints on user id and topic name.
// Safe to call repeatedly.
func (s *Neo4jStore) EnsureConstraints(ctx context.Context) error {
	statements := []string{
		"CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE",
		"CREATE CONSTRAINT topic_name_unique IF NOT EXISTS FOR (t:Topic) REQUIRE t.name IS UNIQUE",
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("neo4j constraint: %w", err)
		}
	}
	return nil
}

func (s *Neo4jStore) UpsertMentions(ctx context.Context, userID, displayName string, topics []string, ts string) error {
	interests := make([]Interest, 0, len(topics))
	for _, topic := range topics {
		interests = append(interests, Interest{Topic: topic, Relationship: Mentions})
	}
	return s.UpsertInterests(ctx, userID, displayName, interests, ts)
}

func (s *Neo4jStore) UpsertInterests(ctx context.Context, userID, displayName string, interests []Interest, ts string) error {
	if s == nil || s.driver == nil {
		return fmt.Errorf("neo4j store is not initialized")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, interest := range interests {
		topic := strings.TrimSpace(interest.Topic)
		if topic == "" {
			continue
		}
		// The relationship type cannot be a Cypher parameter; Label()
		// only ever yields one of the four closed enum labels.
		query := fmt.Sprintf(`
			MERGE (u:User {id: $user_id})
			SET u.name = $display_name
			MERGE (t:Topic {name: $topic})
			MERGE (u)-[r:%s]->(t)
			ON CREATE SET r.count = 1, r.firstSeen = $ts, r.lastSeen = $ts
			ON MATCH SET r.count = r.count + 1, r.lastSeen = $ts
		`, interest.Relationship.Label())
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, query, map[string]any{
				"user_id":      userID,
				"display_name": strings.TrimSpace(displayName),
				"topic":        topic,
				"ts":           ts,
			})
			return nil, err
		})
		if err != nil {
			return fmt.Errorf("neo4j upsert %s %s: %w", interest.Relationship.Label(), topic, err)
		}
	}
	return nil
}

const usersForTopicQuery = `
	MATCH (u:User)-[r]->(t:Topic)
	WHERE toLower(t.name) = toLower($topic)
	  AND u.id <> $exclude
	  AND type(r) IN ['IS_EXPERT_IN', 'WORKING_ON', 'INTERESTED_IN', 'MENTIONS']
	RETURN u.id AS user_id,
	       u.name AS user_name,
	       type(r) AS relationship,
	       r.count AS activity_level,
	       r.lastSeen AS last_activity
	ORDER BY CASE type(r)
	           WHEN 'IS_EXPERT_IN' THEN 1
	           WHEN 'WORKING_ON' THEN 2
	           WHEN 'INTERESTED_IN' THEN 3
	           ELSE 4
	         END ASC,
	         r.count DESC,
	         r.lastSeen DESC
	LIMIT $limit
`

func (s *Neo4jStore) UsersForTopic(ctx context.Context, topic, excludeUserID string, limit int) ([]Edge, error) {
	if s == nil || s.driver == nil {
		return nil, fmt.Errorf("neo4j store is not initialized")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if limit <= 0 {
		limit = 10
	}
	if ctx == nil {
		ctx = context.Background()
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, usersForTopicQuery, map[string]any{
			"topic":   topic,
			"exclude": strings.TrimSpace(excludeUserID),
			"limit":   limit,
		})
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j users for topic %q: %w", topic, err)
	}

	recs, ok := records.([]*neo4j.Record)
	if !ok {
		return nil, fmt.Errorf("neo4j users for topic %q: unexpected result shape", topic)
	}
	edges := make([]Edge, 0, len(recs))
	for _, rec := range recs {
		edge := Edge{}
		if v, ok := rec.Get("user_id"); ok {
			edge.UserID, _ = v.(string)
		}
		if edge.UserID == "" {
			continue
		}
		if v, ok := rec.Get("user_name"); ok {
			edge.UserName, _ = v.(string)
		}
		if v, ok := rec.Get("relationship"); ok {
			label, _ := v.(string)
			edge.Relationship = ParseRelationship(label)
		}
		if v, ok := rec.Get("activity_level"); ok {
			if n, ok := v.(int64); ok {
				edge.ActivityLevel = int(n)
			}
		}
		if v, ok := rec.Get("last_activity"); ok {
			edge.LastActivity, _ = v.(string)
		}
		edges = append(edges, edge)
	}
	return edges, nil
}
