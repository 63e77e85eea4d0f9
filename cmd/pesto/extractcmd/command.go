// Package extractcmd runs the batch interest extractor: it reads member
// profiles from an Airtable table, classifies typed interests with the
// LLM, and writes them into the knowledge graph.
package extractcmd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mlaihq/pesto/airtable"
	"github.com/mlaihq/pesto/extract"
	"github.com/mlaihq/pesto/graph"
	"github.com/mlaihq/pesto/internal/configutil"
	openaiprovider "github.com/mlaihq/pesto/providers/openai"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract typed interests from an Airtable table into the knowledge graph",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := slog.Default()

			table := strings.TrimSpace(configutil.FlagOrViperString(cmd, "table", "extract.table"))
			if table == "" {
				return fmt.Errorf("missing --table")
			}
			infoColumn := strings.TrimSpace(configutil.FlagOrViperString(cmd, "info-column", "extract.info_column"))
			nameColumn := strings.TrimSpace(configutil.FlagOrViperString(cmd, "name-column", "extract.name_column"))
			idColumn := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-id-column", "extract.slack_id_column"))
			dryRun := configutil.FlagOrViperBool(cmd, "dry-run", "")
			rateLimit := configutil.FlagOrViperDuration(cmd, "rate-limit", "extract.rate_limit")

			openaiKey := strings.TrimSpace(configutil.FlagOrViperString(cmd, "openai-api-key", "openai.api_key"))
			if openaiKey == "" {
				return fmt.Errorf("missing openai.api_key (set via --openai-api-key or PESTO_OPENAI_API_KEY)")
			}
			model := strings.TrimSpace(configutil.FlagOrViperString(cmd, "openai-model", "openai.model"))
			if model == "" {
				model = "o3-mini"
			}
			client, err := openaiprovider.NewClient(openaiprovider.Options{APIKey: openaiKey, Model: model})
			if err != nil {
				return fmt.Errorf("openai client: %w", err)
			}

			airtableKey := strings.TrimSpace(configutil.FlagOrViperString(cmd, "airtable-api-key", "airtable.api_key"))
			airtableBase := strings.TrimSpace(configutil.FlagOrViperString(cmd, "airtable-base-id", "airtable.base_id"))
			if airtableKey == "" || airtableBase == "" {
				return fmt.Errorf("missing airtable.api_key or airtable.base_id")
			}
			records, err := airtable.NewClient(airtable.Options{APIKey: airtableKey, BaseID: airtableBase})
			if err != nil {
				return fmt.Errorf("airtable client: %w", err)
			}

			var writer graph.Writer
			if !dryRun {
				neo4jURI := strings.TrimSpace(configutil.FlagOrViperString(cmd, "neo4j-uri", "neo4j.uri"))
				if neo4jURI == "" {
					return fmt.Errorf("missing neo4j.uri (or pass --dry-run)")
				}
				store, err := graph.NewNeo4jStore(cmd.Context(), graph.Neo4jOptions{
					URI:      neo4jURI,
					Username: configutil.FlagOrViperString(cmd, "neo4j-username", "neo4j.username"),
					Password: configutil.FlagOrViperString(cmd, "neo4j-password", "neo4j.password"),
					Logger:   logger,
				})
				if err != nil {
					return fmt.Errorf("neo4j: %w", err)
				}
				defer func() {
					closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					_ = store.Close(closeCtx)
					cancel()
				}()
				if err := store.EnsureConstraints(cmd.Context()); err != nil {
					return fmt.Errorf("neo4j constraints: %w", err)
				}
				writer = store
			}

			return runExtraction(cmd.Context(), extractionOptions{
				Logger:     logger,
				Client:     client,
				Model:      model,
				Records:    records,
				Writer:     writer,
				Table:      table,
				InfoColumn: infoColumn,
				NameColumn: nameColumn,
				IDColumn:   idColumn,
				DryRun:     dryRun,
				RateLimit:  rateLimit,
			})
		},
	}

	cmd.Flags().String("table", "", "Airtable table holding member profiles (required).")
	cmd.Flags().String("info-column", "Info", "Column with the profile text to classify.")
	cmd.Flags().String("name-column", "Name", "Column with the member's display name.")
	cmd.Flags().String("slack-id-column", "SlackID", "Column with the member's Slack user id.")
	cmd.Flags().Bool("dry-run", false, "Classify and report without writing to the graph.")
	cmd.Flags().Duration("rate-limit", 2*time.Second, "Pause between LLM calls.")
	cmd.Flags().String("openai-api-key", "", "OpenAI API key.")
	cmd.Flags().String("openai-model", "", "OpenAI model for classification.")
	cmd.Flags().String("airtable-api-key", "", "Airtable API key.")
	cmd.Flags().String("airtable-base-id", "", "Airtable base id.")
	cmd.Flags().String("neo4j-uri", "", "Neo4j connection URI.")
	cmd.Flags().String("neo4j-username", "", "Neo4j username.")
	cmd.Flags().String("neo4j-password", "", "Neo4j password.")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

type extractionOptions struct {
	Logger     *slog.Logger
	Client     *openaiprovider.Client
	Model      string
	Records    *airtable.Client
	Writer     graph.Writer
	Table      string
	InfoColumn string
	NameColumn string
	IDColumn   string
	DryRun     bool
	RateLimit  time.Duration
}

func runExtraction(ctx context.Context, opts extractionOptions) error {
	records, err := opts.Records.ListRecords(ctx, opts.Table)
	if err != nil {
		return fmt.Errorf("list table %s: %w", opts.Table, err)
	}
	opts.Logger.Info("extract_start", "table", opts.Table, "records", len(records), "dry_run", opts.DryRun)

	processed := 0
	skipped := 0
	relationshipCounts := make(map[string]int)
	topicCounts := make(map[string]int)
	ts := fmt.Sprintf("%d", time.Now().Unix())

	for i, rec := range records {
		userID, _ := rec.Fields[opts.IDColumn].(string)
		userID = strings.TrimSpace(userID)
		info, _ := rec.Fields[opts.InfoColumn].(string)
		info = strings.TrimSpace(info)
		if userID == "" || info == "" {
			skipped++
			continue
		}
		name, _ := rec.Fields[opts.NameColumn].(string)

		interests, err := extract.ProfileInterests(ctx, opts.Client, opts.Model, info)
		if err != nil {
			opts.Logger.Warn("extract_row_error", "record_id", rec.ID, "user_id", userID, "error", err.Error())
			skipped++
			continue
		}
		if len(interests) == 0 {
			opts.Logger.Debug("extract_row_empty", "user_id", userID)
			skipped++
			continue
		}

		for _, interest := range interests {
			relationshipCounts[interest.Relationship.Label()]++
			topicCounts[strings.ToLower(interest.Topic)]++
		}
		opts.Logger.Info("extract_row_done", "user_id", userID, "interests", len(interests))

		if !opts.DryRun {
			if err := opts.Writer.UpsertInterests(ctx, userID, strings.TrimSpace(name), interests, ts); err != nil {
				opts.Logger.Warn("extract_graph_write_error", "user_id", userID, "error", err.Error())
				continue
			}
		}
		processed++

		if i < len(records)-1 && opts.RateLimit > 0 {
			timer := time.NewTimer(opts.RateLimit)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	opts.Logger.Info("extract_done",
		"processed", processed,
		"skipped", skipped,
		"relationships", relationshipCounts,
		"top_topics", topTopics(topicCounts, 10),
	)
	return nil
}

func topTopics(counts map[string]int, n int) []string {
	type entry struct {
		topic string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for topic, count := range counts {
		entries = append(entries, entry{topic, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].topic < entries[j].topic
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, fmt.Sprintf("%s (%d)", e.topic, e.count))
	}
	return out
}
