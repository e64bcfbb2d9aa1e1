package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletstore/internal/shared"
)

func TestResultSet_Getters(t *testing.T) {
	db := NewTestDatabase(t, NewTablesCallback(notesTable))

	rs, err := db.Read(context.Background(),
		"SELECT 42 AS i, 2.5 AS f, 'text' AS s, x'0102' AS b, NULL AS n")
	require.NoError(t, err)

	assert.Equal(t, 1, rs.Len())
	assert.Equal(t, []string{"i", "f", "s", "b", "n"}, rs.Columns())

	i, err := rs.Int64(0, "i")
	require.NoError(t, err)
	assert.Equal(t, int64(42), i)

	f, err := rs.Float64(0, "f")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	s, err := rs.String(0, "s")
	require.NoError(t, err)
	assert.Equal(t, "text", s)

	b, err := rs.Bytes(0, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, b)

	assert.True(t, rs.IsNull(0, "n"))
	assert.False(t, rs.IsNull(0, "i"))

	// NULL читается как нулевое значение
	n, err := rs.Int64(0, "n")
	require.NoError(t, err)
	assert.Zero(t, n)

	// Целое читается как вещественное
	asFloat, err := rs.Float64(0, "i")
	require.NoError(t, err)
	assert.Equal(t, 42.0, asFloat)
}

func TestResultSet_Scan(t *testing.T) {
	db := NewTestDatabase(t, NewTablesCallback(notesTable))

	rs, err := db.Read(context.Background(), "SELECT 7 AS id, 'a' AS tag, NULL AS body, 1 AS flag")
	require.NoError(t, err)

	var (
		id   int
		tag  string
		body sql.NullString
		flag bool
	)
	require.NoError(t, rs.Scan(0, &id, &tag, &body, &flag))
	assert.Equal(t, 7, id)
	assert.Equal(t, "a", tag)
	assert.False(t, body.Valid)
	assert.True(t, flag)

	err = rs.Scan(0, &id)
	assert.ErrorIs(t, err, shared.ErrInvalid)
}

func TestResultSet_Errors(t *testing.T) {
	db := NewTestDatabase(t, NewTablesCallback(notesTable))

	rs, err := db.Read(context.Background(), "SELECT 'abc' AS s")
	require.NoError(t, err)

	_, err = rs.Value(1, "s")
	assert.ErrorIs(t, err, shared.ErrInvalid)

	_, err = rs.Value(0, "missing")
	assert.ErrorIs(t, err, shared.ErrInvalid)
	assert.True(t, rs.IsNull(0, "missing"))

	_, err = rs.Int64(0, "s")
	assert.ErrorIs(t, err, shared.ErrInvalid)

	var unsupported struct{}
	assert.ErrorIs(t, rs.Scan(0, &unsupported), shared.ErrInvalid)
}

func TestResultSet_Empty(t *testing.T) {
	db := NewTestDatabase(t, NewTablesCallback(notesTable))

	rs, err := db.Read(context.Background(), "SELECT tag FROM notes")
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
	assert.Equal(t, []string{"tag"}, rs.Columns())
}
