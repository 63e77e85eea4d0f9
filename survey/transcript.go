package survey

import (
	"context"
	"fmt"
	"strings"

	"github.com/mlaihq/pesto/airtable"
)

// transcriptField is the column the finished conversation lands in.
const transcriptField = "FullConvo"

// RecordStore is the slice of the Airtable client the transcript
// persister needs.
type RecordStore interface {
	ListRecords(ctx context.Context, table string) ([]airtable.Record, error)
	UpdateRecord(ctx context.Context, table, recordID string, fields map[string]any) error
	CreateRecord(ctx context.Context, table string, fields map[string]any) error
}

// Transcripts persists finished conversations to an Airtable table,
// matching rows by the Slack ID column and creating one when absent.
type Transcripts struct {
	store    RecordStore
	table    string
	idColumn string
}

type TranscriptsOptions struct {
	Store    RecordStore
	Table    string
	IDColumn string
}

func NewTranscripts(opts TranscriptsOptions) (*Transcripts, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		return nil, fmt.Errorf("table is required")
	}
	idColumn := strings.TrimSpace(opts.IDColumn)
	if idColumn == "" {
		idColumn = "SlackID"
	}
	return &Transcripts{store: opts.Store, table: table, idColumn: idColumn}, nil
}

func (t *Transcripts) SaveTranscript(ctx context.Context, userID, transcript string) error {
	records, err := t.store.ListRecords(ctx, t.table)
	if err != nil {
		return fmt.Errorf("find user row: %w", err)
	}
	fields := map[string]any{transcriptField: strings.TrimSpace(transcript)}
	for _, rec := range records {
		if id, ok := rec.Fields[t.idColumn].(string); ok && strings.TrimSpace(id) == userID {
			return t.store.UpdateRecord(ctx, t.table, rec.ID, fields)
		}
	}
	fields[t.idColumn] = userID
	return t.store.CreateRecord(ctx, t.table, fields)
}
