package schema

import (
	"fmt"
	"strings"
)

// PromptContext renders a snapshot as the plain-text block the
// natural-language assist feature embeds in its prompt: one paragraph
// per table with the schema-qualified name, the row estimate when one
// exists, then one line per column as
// "name: type NULL|NOT NULL [DEFAULT expr] [(PRIMARY KEY)]".
// Consumers depend on this exact shape; change it only together with
// the assist prompts.
func PromptContext(snap *Snapshot) string {
	var lines []string

	for _, table := range snap.Tables {
		lines = append(lines, fmt.Sprintf("\nTable: %s.%s", table.SchemaName, table.Name))
		if table.RowCount != nil {
			lines = append(lines, fmt.Sprintf("Rows: %d", *table.RowCount))
		}

		lines = append(lines, "Columns:")
		for _, col := range table.Columns {
			nullable := "NOT NULL"
			if col.IsNullable {
				nullable = "NULL"
			}
			line := fmt.Sprintf("  - %s: %s %s", col.Name, col.DataType, nullable)
			if col.ColumnDefault != nil {
				line += " DEFAULT " + *col.ColumnDefault
			}
			if col.IsPrimaryKey {
				line += " (PRIMARY KEY)"
			}
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}
