package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AllowedQueries(t *testing.T) {
	allowed := []string{
		"SELECT * FROM users",
		"SELECT id, name FROM users WHERE id = 1",
		"select * from users", // lowercase
		"  SELECT 1  ",
		"SELECT * FROM users;",
		"WITH recent AS (SELECT * FROM orders WHERE created_at > now() - interval '1 day') SELECT * FROM recent",
		"with t as (select 1) select * from t",
		"SELECT created_at FROM orders",   // 'created' contains 'create'
		"SELECT updated_at FROM products", // 'updated' contains 'update'
		"SELECT deleted FROM items",       // 'deleted' contains 'delete'
		"SELECT * FROM users WHERE name = 'DROP TABLE users'", // keyword in string literal
		"SELECT 'it''s fine' FROM t",
		"SELECT * FROM `select` WHERE id = 1", // keyword as quoted identifier
		"-- leading comment\nSELECT 1",
		"/* block */ SELECT 1",
		"SELECT $tag$INSERT INTO x$tag$ FROM t",
	}

	v := New(0)
	for _, q := range allowed {
		t.Run(q, func(t *testing.T) {
			_, err := v.Validate(q)
			assert.NoError(t, err)
		})
	}
}

func TestValidate_BlockedQueries(t *testing.T) {
	blocked := []struct {
		query   string
		keyword string
	}{
		{"INSERT INTO users VALUES (1, 'test')", "INSERT"},
		{"UPDATE users SET name = 'test'", "UPDATE"},
		{"DELETE FROM users", "DELETE"},
		{"DROP TABLE users", "DROP"},
		{"CREATE TABLE test (id INT)", "CREATE"},
		{"ALTER TABLE users ADD COLUMN age INT", "ALTER"},
		{"TRUNCATE TABLE users", "TRUNCATE"},
		{"GRANT ALL ON db.* TO 'user'", "GRANT"},
		{"CALL some_procedure()", "CALL"},
		{"SET search_path TO public", "SET"},
		{"EXPLAIN SELECT * FROM users", "EXPLAIN"},
		{"SHOW TABLES", "SHOW"},
		{"SELECT 1; DROP TABLE users", "DROP"},
		{"SELECT 1; -- comment\nDROP TABLE users", "DROP"},
		{"SELECT 1;\nDELETE FROM users;", "DELETE"},
	}

	v := New(0)
	for _, tc := range blocked {
		t.Run(tc.query, func(t *testing.T) {
			_, err := v.Validate(tc.query)
			require.Error(t, err)
			var rejection *RejectionError
			require.ErrorAs(t, err, &rejection)
			assert.Contains(t, rejection.Reason, tc.keyword)
		})
	}
}

func TestValidate_EmptyInput(t *testing.T) {
	v := New(0)
	for _, q := range []string{"", "   ", ";", "-- only a comment", "/* nothing */"} {
		t.Run("empty:"+q, func(t *testing.T) {
			_, err := v.Validate(q)
			var rejection *RejectionError
			require.ErrorAs(t, err, &rejection)
		})
	}
}

func TestValidate_LimitInjection(t *testing.T) {
	v := New(500)

	out, err := v.Validate("SELECT * FROM users")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users LIMIT 500", out)

	// Trailing semicolons and whitespace are trimmed before appending,
	// in whatever order they appear.
	for _, q := range []string{
		"SELECT * FROM users ;  ",
		"SELECT * FROM users;",
		"SELECT * FROM users\t;\n",
		"SELECT * FROM users ;;",
	} {
		out, err = v.Validate(q)
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM users LIMIT 500", out)
	}

	// An existing LIMIT is left untouched, whatever its case or value.
	for _, q := range []string{
		"SELECT * FROM users LIMIT 10",
		"select * from users limit 999999",
		"SELECT * FROM users LIMIT 10 OFFSET 5",
	} {
		out, err = v.Validate(q)
		require.NoError(t, err)
		assert.Equal(t, q, out)
	}
}

func TestValidate_LimitLikeIdentifiers(t *testing.T) {
	// Column names containing "limit" do not count as a LIMIT clause.
	v := New(100)
	out, err := v.Validate("SELECT rate_limit FROM plans")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "LIMIT 100"))

	// But a LIMIT inside a string literal does not either.
	out, err = v.Validate("SELECT * FROM t WHERE note = 'no limit'")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "LIMIT 100"))

	// Neither does a quoted identifier named "limit".
	out, err = v.Validate(`SELECT "limit" FROM plans`)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "LIMIT 100"))

	out, err = v.Validate("SELECT `limit` FROM plans")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "LIMIT 100"))
}

func TestValidate_LimitOnFinalStatement(t *testing.T) {
	// A LIMIT in an earlier statement does not cap the last one; the
	// appended LIMIT lands on the statement that lacks it.
	v := New(100)
	out, err := v.Validate("SELECT 1 LIMIT 5; SELECT * FROM users")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 LIMIT 5; SELECT * FROM users LIMIT 100", out)

	// When the final statement already carries a LIMIT, nothing is
	// appended.
	q := "SELECT 1; SELECT * FROM users LIMIT 5"
	out, err = v.Validate(q)
	require.NoError(t, err)
	assert.Equal(t, q, out)
}

func TestMaskQuotedIdentifiers(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"double quoted", `SELECT "limit" FROM t`, `SELECT "" FROM t`},
		{"backtick quoted", "SELECT `limit` FROM t", "SELECT `` FROM t"},
		{"doubled inner quote", `SELECT "a""limit" FROM t`, `SELECT "" FROM t`},
		{"unterminated", `SELECT "limit`, `SELECT "`},
		{"no identifiers", "SELECT x FROM t", "SELECT x FROM t"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, maskQuotedIdentifiers(tc.in))
		})
	}
}

func TestValidate_DefaultMaxRows(t *testing.T) {
	v := New(0)
	out, err := v.Validate("SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 LIMIT 1000", out)
}

func TestStripStringsAndComments(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"line comment", "SELECT 1 -- DROP TABLE x", "SELECT 1  "},
		{"block comment", "SELECT /* DELETE */ 1", "SELECT   1"},
		{"single quoted", "SELECT 'DROP TABLE x'", "SELECT ''"},
		{"doubled quote", "SELECT 'it''s'", "SELECT ''"},
		{"dollar quoted", "SELECT $$; DROP$$", "SELECT ''"},
		{"tagged dollar quoted", "SELECT $fn$; DROP$fn$", "SELECT ''"},
		{"positional param kept", "SELECT * FROM t WHERE id = $1", "SELECT * FROM t WHERE id = $1"},
		{"double quoted identifier kept", `SELECT "weird col" FROM t`, `SELECT "weird col" FROM t`},
		{"backtick identifier kept", "SELECT `weird col` FROM t", "SELECT `weird col` FROM t"},
		{"unterminated string", "SELECT 'oops", "SELECT ''"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, stripStringsAndComments(tc.in))
		})
	}
}
