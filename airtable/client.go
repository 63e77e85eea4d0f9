// Package airtable is a minimal JSON/HTTP client for the Airtable
// records API, covering the list/update/create surface the bot needs.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Record is one Airtable row.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	baseID  string
}

type Options struct {
	APIKey     string
	BaseID     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	baseID := strings.TrimSpace(opts.BaseID)
	if baseID == "" {
		return nil, fmt.Errorf("base id is required")
	}
	baseURL := strings.TrimSpace(strings.TrimRight(opts.BaseURL, "/"))
	if baseURL == "" {
		baseURL = "https://api.airtable.com/v0"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  apiKey,
		baseID:  baseID,
	}, nil
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// ListRecords fetches every record in the table, following the offset
// cursor until Airtable stops returning one.
func (c *Client) ListRecords(ctx context.Context, table string) ([]Record, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return nil, fmt.Errorf("table is required")
	}
	var records []Record
	offset := ""
	for {
		path := fmt.Sprintf("/%s/%s", c.baseID, url.PathEscape(table))
		if offset != "" {
			path += "?offset=" + url.QueryEscape(offset)
		}
		body, status, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		if status < 200 || status >= 300 {
			return nil, fmt.Errorf("airtable list %s http %d", table, status)
		}
		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("airtable list %s: %w", table, err)
		}
		records = append(records, page.Records...)
		if page.Offset == "" {
			return records, nil
		}
		offset = page.Offset
	}
}

type writeRequest struct {
	Fields map[string]any `json:"fields"`
}

// UpdateRecord patches the named fields on one record.
func (c *Client) UpdateRecord(ctx context.Context, table, recordID string, fields map[string]any) error {
	table = strings.TrimSpace(table)
	recordID = strings.TrimSpace(recordID)
	if table == "" {
		return fmt.Errorf("table is required")
	}
	if recordID == "" {
		return fmt.Errorf("record id is required")
	}
	path := fmt.Sprintf("/%s/%s/%s", c.baseID, url.PathEscape(table), url.PathEscape(recordID))
	body, status, err := c.do(ctx, http.MethodPatch, path, writeRequest{Fields: fields})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("airtable update %s/%s http %d: %s", table, recordID, status, truncateBody(body))
	}
	return nil
}

// CreateRecord inserts a new row.
func (c *Client) CreateRecord(ctx context.Context, table string, fields map[string]any) error {
	table = strings.TrimSpace(table)
	if table == "" {
		return fmt.Errorf("table is required")
	}
	path := fmt.Sprintf("/%s/%s", c.baseID, url.PathEscape(table))
	body, status, err := c.do(ctx, http.MethodPost, path, writeRequest{Fields: fields})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("airtable create %s http %d: %s", table, status, truncateBody(body))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp.StatusCode, readErr
	}
	return raw, resp.StatusCode, nil
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// UserRow is one invite target pulled from a table.
type UserRow struct {
	RecordID string
	SlackID  string
	Name     string
}

// UserRows extracts the rows that carry a Slack ID. Names default to
// "there" so DM greetings always read naturally.
func UserRows(records []Record, idColumn, nameColumn string) []UserRow {
	rows := make([]UserRow, 0, len(records))
	for _, rec := range records {
		id, _ := rec.Fields[idColumn].(string)
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		name := "there"
		if nameColumn != "" {
			if v, ok := rec.Fields[nameColumn].(string); ok && strings.TrimSpace(v) != "" {
				name = strings.TrimSpace(v)
			}
		}
		rows = append(rows, UserRow{RecordID: rec.ID, SlackID: id, Name: name})
	}
	return rows
}
