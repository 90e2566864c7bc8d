// Package assist turns natural-language prompts into candidate SQL by
// calling an external OpenAI-compatible chat-completions API. The model
// is given the schema context block for the target connection; whatever
// it produces goes back through the same read-only gate as user-written
// SQL before it is returned.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/querydeck/querydeck/internal/dialect"
	"github.com/querydeck/querydeck/internal/schema"
	"github.com/querydeck/querydeck/internal/validate"
)

// Response carries a candidate SQL statement and its explanation.
type Response struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// Client calls the external text-generation service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	validator  *validate.Validator
	log        logrus.FieldLogger
}

func NewClient(baseURL, apiKey, model string, v *validate.Validator, log logrus.FieldLogger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		validator:  v,
		log:        log,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GenerateSQL asks the model for a SELECT statement answering prompt
// against the given schema snapshot. The generated SQL must pass the
// validator gate; a statement that fails it is an error, never returned
// to the caller.
func (c *Client) GenerateSQL(ctx context.Context, kind dialect.Kind, snap *schema.Snapshot, prompt string) (*Response, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(kind, schema.PromptContext(snap))},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   1000,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("completion API returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("decode completion response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("completion API returned no choices")
	}

	sqlText, explanation, err := parseCompletion(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	if _, err := c.validator.Validate(sqlText); err != nil {
		c.log.WithError(err).Warn("generated SQL failed the read-only gate")
		return nil, fmt.Errorf("generated SQL failed validation: %w", err)
	}

	return &Response{SQL: sqlText, Explanation: explanation}, nil
}

// parseCompletion extracts the SQL and explanation from the model's
// "SQL: ... / Explanation: ..." response shape. Continuation lines
// attach to whichever section is open; markdown code fences are
// stripped.
func parseCompletion(content string) (string, string, error) {
	var sqlText, explanation string

	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SQL:"):
			sqlText = strings.TrimSpace(strings.TrimPrefix(line, "SQL:"))
		case strings.HasPrefix(line, "Explanation:"):
			explanation = strings.TrimSpace(strings.TrimPrefix(line, "Explanation:"))
		case sqlText != "":
			if explanation == "" {
				sqlText += " " + line
			} else {
				explanation += " " + line
			}
		}
	}

	sqlText = strings.ReplaceAll(sqlText, "```sql", "")
	sqlText = strings.ReplaceAll(sqlText, "```", "")
	sqlText = strings.TrimSpace(sqlText)

	if sqlText == "" {
		return "", "", fmt.Errorf("could not parse SQL from model response")
	}
	if explanation == "" {
		explanation = "SQL query generated from natural language"
	}
	return sqlText, explanation, nil
}

func systemPrompt(kind dialect.Kind, schemaContext string) string {
	if kind == dialect.MySQL {
		return fmt.Sprintf(`You are a MySQL SQL expert. Generate a valid SQL SELECT query based on the user's natural language request.

Database Schema:
%s

Rules:
1. Generate ONLY SELECT queries (no INSERT, UPDATE, DELETE, DROP, etc.)
2. Use proper MySQL syntax and functions (NOW(), CURDATE(), DATE_ADD(), CONCAT(), etc.)
3. Use backticks for identifiers if needed
4. Use database.table notation for table names
5. Return the SQL query and a brief explanation
6. If the request is ambiguous, make reasonable assumptions
7. Do not add LIMIT clause (it will be added automatically)

Response format:
SQL: <your sql query>
Explanation: <brief explanation of what the query does>
`, schemaContext)
	}

	return fmt.Sprintf(`You are a PostgreSQL SQL expert. Generate a valid SQL SELECT query based on the user's natural language request.

Database Schema:
%s

Rules:
1. Generate ONLY SELECT queries (no INSERT, UPDATE, DELETE, DROP, etc.)
2. Use proper PostgreSQL syntax
3. Use schema-qualified table names (schema.table)
4. Return the SQL query and a brief explanation
5. If the request is ambiguous, make reasonable assumptions
6. Do not add LIMIT clause (it will be added automatically)

Response format:
SQL: <your sql query>
Explanation: <brief explanation of what the query does>
`, schemaContext)
}
