package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }

func TestPromptContext(t *testing.T) {
	snap := &Snapshot{
		Tables: []TableInfo{
			{
				Name:       "users",
				SchemaName: "public",
				TableType:  "table",
				RowCount:   i64Ptr(1500),
				Columns: []ColumnInfo{
					{Name: "id", DataType: "integer", IsNullable: false, IsPrimaryKey: true},
					{Name: "email", DataType: "text", IsNullable: false},
					{Name: "nickname", DataType: "text", IsNullable: true, ColumnDefault: strPtr("''::text")},
				},
			},
			{
				Name:       "audit_log",
				SchemaName: "public",
				TableType:  "view",
				Columns: []ColumnInfo{
					{Name: "event", DataType: "text", IsNullable: true},
				},
			},
		},
	}

	want := `
Table: public.users
Rows: 1500
Columns:
  - id: integer NOT NULL (PRIMARY KEY)
  - email: text NOT NULL
  - nickname: text NULL DEFAULT ''::text

Table: public.audit_log
Columns:
  - event: text NULL`

	assert.Equal(t, want, PromptContext(snap))
}

func TestPromptContext_Empty(t *testing.T) {
	assert.Equal(t, "", PromptContext(&Snapshot{}))
}
