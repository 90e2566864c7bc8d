package assist

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querydeck/querydeck/internal/dialect"
	"github.com/querydeck/querydeck/internal/schema"
	"github.com/querydeck/querydeck/internal/validate"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testSnapshot() *schema.Snapshot {
	return &schema.Snapshot{
		Tables: []schema.TableInfo{
			{
				Name:       "users",
				SchemaName: "public",
				TableType:  "table",
				Columns: []schema.ColumnInfo{
					{Name: "id", DataType: "integer", IsPrimaryKey: true},
					{Name: "email", DataType: "text", IsNullable: true},
				},
			},
		},
	}
}

// completionServer returns a chat-completions stub replying with the
// given message content, and captures the request it received.
func completionServer(t *testing.T, content string, captured *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
}

func TestGenerateSQL(t *testing.T) {
	var captured chatRequest
	srv := completionServer(t,
		"SQL: SELECT id, email FROM public.users\nExplanation: Lists all users.",
		&captured)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", validate.New(0), testLogger())
	resp, err := c.GenerateSQL(context.Background(), dialect.Postgres, testSnapshot(), "show me all users")
	require.NoError(t, err)

	assert.Equal(t, "SELECT id, email FROM public.users", resp.SQL)
	assert.Equal(t, "Lists all users.", resp.Explanation)

	// The schema context travels in the system message.
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "PostgreSQL")
	assert.Contains(t, captured.Messages[0].Content, "Table: public.users")
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "show me all users", captured.Messages[1].Content)
	assert.Equal(t, "test-model", captured.Model)
}

func TestGenerateSQL_MySQLPrompt(t *testing.T) {
	var captured chatRequest
	srv := completionServer(t, "SQL: SELECT 1\nExplanation: trivial", &captured)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", validate.New(0), testLogger())
	_, err := c.GenerateSQL(context.Background(), dialect.MySQL, testSnapshot(), "anything")
	require.NoError(t, err)
	assert.Contains(t, captured.Messages[0].Content, "MySQL")
}

func TestGenerateSQL_RejectsGeneratedWrites(t *testing.T) {
	srv := completionServer(t, "SQL: DELETE FROM users\nExplanation: removes users", nil)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", validate.New(0), testLogger())
	_, err := c.GenerateSQL(context.Background(), dialect.Postgres, testSnapshot(), "clean up users")
	require.Error(t, err)
	var rejection *validate.RejectionError
	assert.ErrorAs(t, err, &rejection)
}

func TestGenerateSQL_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", validate.New(0), testLogger())
	_, err := c.GenerateSQL(context.Background(), dialect.Postgres, testSnapshot(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGenerateSQL_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "test-model", validate.New(0), testLogger())
	_, err := c.GenerateSQL(context.Background(), dialect.Postgres, testSnapshot(), "anything")
	assert.Error(t, err)
}

func TestParseCompletion(t *testing.T) {
	cases := []struct {
		name        string
		content     string
		wantSQL     string
		wantExplain string
		wantErr     bool
	}{
		{
			name:        "basic",
			content:     "SQL: SELECT 1\nExplanation: trivial",
			wantSQL:     "SELECT 1",
			wantExplain: "trivial",
		},
		{
			name:        "multiline sql",
			content:     "SQL: SELECT id\nFROM users\nWHERE active\nExplanation: active users",
			wantSQL:     "SELECT id FROM users WHERE active",
			wantExplain: "active users",
		},
		{
			name:        "multiline explanation",
			content:     "SQL: SELECT 1\nExplanation: first part\nsecond part",
			wantSQL:     "SELECT 1",
			wantExplain: "first part second part",
		},
		{
			name:        "code fences stripped",
			content:     "SQL: ```sql\nSELECT 1\n```\nExplanation: fenced",
			wantSQL:     "SELECT 1",
			wantExplain: "fenced",
		},
		{
			name:        "missing explanation gets default",
			content:     "SQL: SELECT 1",
			wantSQL:     "SELECT 1",
			wantExplain: "SQL query generated from natural language",
		},
		{
			name:    "no sql line",
			content: "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "empty",
			content: "",
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sqlText, explanation, err := parseCompletion(tc.content)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantSQL, sqlText)
			assert.Equal(t, tc.wantExplain, explanation)
		})
	}
}
