package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{APIKey: "key", BaseID: "appBase", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, srv
}

func TestListRecordsFollowsOffset(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		if r.URL.Path != "/appBase/Members" {
			t.Errorf("path = %q", r.URL.Path)
		}
		switch r.URL.Query().Get("offset") {
		case "":
			fmt.Fprint(w, `{"records":[{"id":"rec1","fields":{"SlackID":"U1"}}],"offset":"next"}`)
		case "next":
			fmt.Fprint(w, `{"records":[{"id":"rec2","fields":{"SlackID":"U2"}}]}`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	}))

	records, err := client.ListRecords(context.Background(), "Members")
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 pages", calls)
	}
	if len(records) != 2 || records[0].ID != "rec1" || records[1].ID != "rec2" {
		t.Fatalf("records = %+v", records)
	}
}

func TestListRecordsHTTPError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	if _, err := client.ListRecords(context.Background(), "Members"); err == nil {
		t.Fatalf("ListRecords() error = nil, want http error")
	}
}

func TestUpdateRecordSendsPatch(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %q", r.Method)
		}
		if r.URL.Path != "/appBase/Members/rec1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			Fields map[string]any `json:"fields"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Fields["FullConvo"] != "User: hi" {
			t.Errorf("fields = %+v", body.Fields)
		}
		fmt.Fprint(w, `{"id":"rec1"}`)
	}))

	err := client.UpdateRecord(context.Background(), "Members", "rec1", map[string]any{"FullConvo": "User: hi"})
	if err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}
}

func TestCreateRecordSendsPost(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		fmt.Fprint(w, `{"id":"recNew"}`)
	}))
	if err := client.CreateRecord(context.Background(), "Members", map[string]any{"SlackID": "U1"}); err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
}

func TestUserRows(t *testing.T) {
	records := []Record{
		{ID: "rec1", Fields: map[string]any{"SlackID": "U1", "Name": "Ana"}},
		{ID: "rec2", Fields: map[string]any{"SlackID": "  "}},
		{ID: "rec3", Fields: map[string]any{"Name": "no id"}},
		{ID: "rec4", Fields: map[string]any{"SlackID": "U4"}},
	}
	rows := UserRows(records, "SlackID", "Name")
	if len(rows) != 2 {
		t.Fatalf("rows = %+v, want 2", rows)
	}
	if rows[0].SlackID != "U1" || rows[0].Name != "Ana" {
		t.Fatalf("rows[0] = %+v", rows[0])
	}
	if rows[1].SlackID != "U4" || rows[1].Name != "there" {
		t.Fatalf("rows[1] = %+v, name should default", rows[1])
	}
}
