package dataset

import (
	"context"
	"strings"
	"testing"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	db.MustExec(`CREATE TABLE deliveries (
		match_id INTEGER,
		inning INTEGER,
		batting_team TEXT,
		bowling_team TEXT,
		match_won_by TEXT
	)`)
	return db
}

func TestSQLSource_Load(t *testing.T) {
	db := openSQLite(t)
	db.MustExec(`INSERT INTO deliveries VALUES
		(10, 1, 'Sunrisers Hyderabad', 'Delhi Capitals', 'Delhi Capitals'),
		(10, 2, 'Delhi Capitals', 'Sunrisers Hyderabad', 'Delhi Capitals'),
		(11, 1, 'Punjab Kings', 'Rajasthan Royals', NULL),
		(NULL, 1, 'X', 'Y', 'X')`)

	src, err := NewSQLSource(db, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "sql:deliveries", src.Describe())

	table, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, table.Len())
	assert.Equal(t, "10", table.Deliveries[0].MatchID)
	assert.Equal(t, "Delhi Capitals", table.Deliveries[0].MatchWonBy)
	assert.Equal(t, "", table.Deliveries[2].MatchWonBy)
}

func TestSQLSource_Fingerprint(t *testing.T) {
	db := openSQLite(t)
	db.MustExec(`INSERT INTO deliveries VALUES (1, 1, 'A', 'B', 'A')`)

	src, err := NewSQLSource(db, "deliveries", nil)
	require.NoError(t, err)
	ctx := context.Background()

	before, err := src.Fingerprint(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(before, "sql:deliveries:1:"), before)

	again, err := src.Fingerprint(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, again, "unchanged table keeps its fingerprint")

	db.MustExec(`INSERT INTO deliveries VALUES (2, 1, 'A', 'B', 'B')`)
	inserted, err := src.Fingerprint(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before, inserted)

	db.MustExec(`UPDATE deliveries SET match_won_by = 'A' WHERE match_id = 2`)
	updated, err := src.Fingerprint(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, inserted, updated, "same row count, different winner")

	db.MustExec(`UPDATE deliveries SET match_won_by = NULL WHERE match_id = 2`)
	nulled, err := src.Fingerprint(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, updated, nulled)
}

func TestSQLSource_FingerprintIgnoresPhysicalOrder(t *testing.T) {
	first := openSQLite(t)
	first.MustExec(`INSERT INTO deliveries VALUES (1, 1, 'A', 'B', 'A'), (2, 1, 'C', 'D', NULL)`)
	second := openSQLite(t)
	second.MustExec(`INSERT INTO deliveries VALUES (2, 1, 'C', 'D', NULL), (1, 1, 'A', 'B', 'A')`)

	a, err := NewSQLSource(first, "", nil)
	require.NoError(t, err)
	b, err := NewSQLSource(second, "", nil)
	require.NoError(t, err)

	fa, err := a.Fingerprint(context.Background())
	require.NoError(t, err)
	fb, err := b.Fingerprint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fa, fb)
}

func TestSQLSource_TrimsMatchID(t *testing.T) {
	db := openSQLite(t)
	db.MustExec(`CREATE TABLE text_ids (match_id TEXT, batting_team TEXT, bowling_team TEXT, match_won_by TEXT)`)
	db.MustExec(`INSERT INTO text_ids VALUES ('1 ', 'A', 'B', 'A'), (' 1', 'B', 'A', 'A'), ('  ', 'C', 'D', 'C')`)

	src, err := NewSQLSource(db, "text_ids", nil)
	require.NoError(t, err)

	table, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, table.Len(), "blank match ids are skipped")
	assert.Equal(t, "1", table.Deliveries[0].MatchID)
	assert.Equal(t, "1", table.Deliveries[1].MatchID)
}

func TestSQLSource_MissingColumns(t *testing.T) {
	db := openSQLite(t)
	db.MustExec(`CREATE TABLE partial (match_id INTEGER, batting_team TEXT)`)

	src, err := NewSQLSource(db, "partial", nil)
	require.NoError(t, err)

	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, ErrDataFormat)
}

func TestNewSQLSource_RejectsUnsafeTableName(t *testing.T) {
	db := openSQLite(t)
	for _, name := range []string{"deliveries; DROP TABLE x", "a b", "1abc", "a.b.c"} {
		_, err := NewSQLSource(db, name, nil)
		assert.Error(t, err, name)
	}

	_, err := NewSQLSource(db, "public.deliveries", nil)
	assert.NoError(t, err)
}
