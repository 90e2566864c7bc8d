// Package validate is the read-only gate every SQL string must pass
// before it reaches a live credentialed connection. It strips string
// literals and comments, splits the input into statements, and accepts
// only statements whose leading keyword is SELECT (or WITH, for
// common-table-expression queries). Accepted statements that carry no
// LIMIT get one appended.
package validate

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxRows is the LIMIT appended to accepted statements that lack
// one. It caps live query results, not exports.
const DefaultMaxRows = 1000

// RejectionError reports why a statement was refused. The message is
// written for direct display to the user.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

// Validator gates SQL text and injects row caps. Construct one at
// process start and share it; it is stateless and safe for concurrent
// use.
type Validator struct {
	maxRows int
}

func New(maxRows int) *Validator {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Validator{maxRows: maxRows}
}

// limitRe matches a LIMIT keyword token in SQL already stripped of
// strings, comments and quoted-identifier contents.
var limitRe = regexp.MustCompile(`(?i)(^|[^a-z0-9_$])limit($|[^a-z0-9_$])`)

// Validate checks that every statement in sqlText is read-only. On
// acceptance it returns the text to execute, with a LIMIT appended when
// none was present; the validator never lowers an existing cap. On
// rejection it returns a *RejectionError.
func (v *Validator) Validate(sqlText string) (string, error) {
	cleaned := stripStringsAndComments(sqlText)

	stmts := splitStatements(cleaned)
	if len(stmts) == 0 {
		return "", &RejectionError{Reason: "empty SQL query"}
	}

	for _, stmt := range stmts {
		switch kw := leadingKeyword(stmt); kw {
		case "SELECT", "WITH":
		case "":
			return "", &RejectionError{Reason: "could not determine the statement type"}
		default:
			return "", &RejectionError{Reason: fmt.Sprintf("only SELECT queries are allowed, found %s", kw)}
		}
	}

	// Only the final statement can receive the appended cap, so only
	// its LIMIT counts; identifier contents are masked so a column
	// merely named "limit" does not suppress injection.
	if limitRe.MatchString(maskQuotedIdentifiers(stmts[len(stmts)-1])) {
		return sqlText, nil
	}
	trimmed := strings.TrimRight(strings.TrimSpace(sqlText), "; \t\r\n")
	return fmt.Sprintf("%s LIMIT %d", trimmed, v.maxRows), nil
}

// splitStatements splits SQL already stripped of strings and comments
// on statement separators, dropping empty segments.
func splitStatements(cleaned string) []string {
	var out []string
	for _, part := range strings.Split(cleaned, ";") {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

// leadingKeyword returns the first word of a statement, uppercased.
func leadingKeyword(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	end := 0
	for end < len(stmt) {
		c := stmt[end]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			end++
			continue
		}
		break
	}
	return strings.ToUpper(stmt[:end])
}

// stripStringsAndComments blanks string literals and comments so
// keyword detection cannot be fooled by quoted or commented text. It is
// deliberately dialect-agnostic and conservative: constructs that only
// one dialect treats as hiding (MySQL # comments, backslash escapes)
// are NOT honored, because honoring them on the other dialect would let
// live statements masquerade as comments or strings. The cost is a
// false rejection of some legal queries, never a false acceptance.
func stripStringsAndComments(sqlText string) string {
	var result strings.Builder
	i := 0
	n := len(sqlText)

	for i < n {
		// -- line comment
		if i+1 < n && sqlText[i] == '-' && sqlText[i+1] == '-' {
			for i < n && sqlText[i] != '\n' {
				i++
			}
			result.WriteByte(' ')
			continue
		}

		// /* block comment */
		if i+1 < n && sqlText[i] == '/' && sqlText[i+1] == '*' {
			i += 2
			for i+1 < n && !(sqlText[i] == '*' && sqlText[i+1] == '/') {
				i++
			}
			i += 2
			result.WriteByte(' ')
			continue
		}

		// $tag$ ... $tag$ dollar-quoted string
		if sqlText[i] == '$' {
			if tag, ok := dollarTag(sqlText[i:]); ok {
				closeIdx := strings.Index(sqlText[i+len(tag):], tag)
				if closeIdx >= 0 {
					i += len(tag) + closeIdx + len(tag)
					result.WriteString("''")
					continue
				}
			}
		}

		// '...' string, '' doubles as an escaped quote
		if sqlText[i] == '\'' {
			i++
			for i < n {
				if sqlText[i] == '\'' {
					if i+1 < n && sqlText[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			result.WriteString("''")
			continue
		}

		// "..." quoted identifier, content kept
		if sqlText[i] == '"' {
			result.WriteByte('"')
			i++
			for i < n {
				if sqlText[i] == '"' {
					if i+1 < n && sqlText[i+1] == '"' {
						result.WriteString(`""`)
						i += 2
						continue
					}
					result.WriteByte('"')
					i++
					break
				}
				result.WriteByte(sqlText[i])
				i++
			}
			continue
		}

		// `...` quoted identifier, content kept
		if sqlText[i] == '`' {
			result.WriteByte('`')
			i++
			for i < n && sqlText[i] != '`' {
				result.WriteByte(sqlText[i])
				i++
			}
			if i < n {
				result.WriteByte('`')
				i++
			}
			continue
		}

		result.WriteByte(sqlText[i])
		i++
	}

	return result.String()
}

// maskQuotedIdentifiers blanks the contents of double-quoted and
// backtick-quoted identifiers in SQL already stripped of strings and
// comments, so keyword scans cannot match words that are only
// identifier text.
func maskQuotedIdentifiers(cleaned string) string {
	var result strings.Builder
	i := 0
	n := len(cleaned)

	for i < n {
		q := cleaned[i]
		if q != '"' && q != '`' {
			result.WriteByte(q)
			i++
			continue
		}

		result.WriteByte(q)
		i++
		for i < n {
			if cleaned[i] == q {
				if q == '"' && i+1 < n && cleaned[i+1] == '"' {
					i += 2
					continue
				}
				break
			}
			i++
		}
		if i < n {
			result.WriteByte(q)
			i++
		}
	}

	return result.String()
}

// dollarTag reports whether s starts a dollar-quote opener ($$ or
// $tag$) and returns it. Identifier-like tags only, so positional
// parameters such as $1 are left alone.
func dollarTag(s string) (string, bool) {
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[:i+1], true
		}
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 1 && c >= '0' && c <= '9')) {
			return "", false
		}
	}
	return "", false
}
