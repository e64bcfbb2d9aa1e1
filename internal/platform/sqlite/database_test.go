package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletstore/internal/shared"
)

var (
	parentTable = MustDefineTable("parent",
		Column("_id", TypeInteger, PrimaryKey(), AutoIncrement(), NotNull()),
		Column("name", TypeText, NotNull()),
	)
	childTable = MustDefineTable("child",
		Column("parentId", TypeInteger, NotNull(), References("parent", "_id", RefCascade, RefNoAction)),
		Column("value", TypeText),
	)
)

// countingCallback считает вызовы жизненного цикла
type countingCallback struct {
	*TablesCallback
	creates atomic.Int32
	opens   atomic.Int32
	failOn  string
}

func newCountingCallback(tables ...*TableSchema) *countingCallback {
	return &countingCallback{TablesCallback: NewTablesCallback(tables...)}
}

func (c *countingCallback) OnCreate(ctx context.Context, h *Handle) error {
	c.creates.Add(1)
	if err := c.TablesCallback.OnCreate(ctx, h); err != nil {
		return err
	}
	if c.failOn == "create" {
		return errors.New("create failed")
	}
	return nil
}

func (c *countingCallback) OnOpen(ctx context.Context, h *Handle) error {
	c.opens.Add(1)
	return c.TablesCallback.OnOpen(ctx, h)
}

// upgradingCallback фиксирует интервалы OnUpgrade
type upgradingCallback struct {
	*TablesCallback
	Migrations
	calls [][2]int
}

func (c *upgradingCallback) OnUpgrade(ctx context.Context, h *Handle, from, to int) error {
	c.calls = append(c.calls, [2]int{from, to})
	return c.Migrations.OnUpgrade(ctx, h, from, to)
}

func TestOpen_CreateRunsOnceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	ctx := context.Background()
	cb := newCountingCallback(parentTable, childTable)

	db, err := Open(ctx, path, 1, cb, TestOptions())
	require.NoError(t, err)
	assert.Equal(t, int32(1), cb.creates.Load())
	assert.Equal(t, int32(1), cb.opens.Load())
	require.NoError(t, db.Close(ctx))

	db, err = Open(ctx, path, 1, cb, TestOptions())
	require.NoError(t, err)
	defer db.Close(ctx)

	assert.Equal(t, int32(1), cb.creates.Load(), "OnCreate must not run on reopen")
	assert.Equal(t, int32(2), cb.opens.Load())

	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Equal(t, path, db.Path())
	assert.True(t, TableExists(t, db, "parent"))
	assert.True(t, TableExists(t, db, "child"))
}

func TestOpen_ForeignKeysEnforced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	ctx := context.Background()

	insertOrphan := func(db *Database) error {
		return db.WithTransaction(ctx, func(ctx context.Context, tx *Tx) error {
			_, err := tx.Exec(ctx, "INSERT INTO child (parentId, value) VALUES (999, 'orphan')")
			return err
		})
	}

	// После создания
	db := OpenTestDatabase(t, path, 1, NewTablesCallback(parentTable, childTable))
	err := insertOrphan(db)
	require.Error(t, err)
	assert.True(t, IsConstraint(err))
	require.NoError(t, db.Close(ctx))

	// После повторного открытия
	db = OpenTestDatabase(t, path, 1, NewTablesCallback(parentTable, childTable))
	err = insertOrphan(db)
	require.Error(t, err)
	assert.Equal(t, shared.KindConstraint, shared.KindOf(err))

	// Каскадное удаление
	MustExec(t, db,
		"INSERT INTO parent (name) VALUES ('p')",
		"INSERT INTO child (parentId, value) VALUES (1, 'c')",
	)
	assert.Equal(t, 1, CountRows(t, db, "child"))
	MustExec(t, db, "DELETE FROM parent WHERE _id = 1")
	assert.Equal(t, 0, CountRows(t, db, "child"))

	// Соединения чтения тоже видят foreign_keys = 1
	rs, err := db.Read(ctx, "PRAGMA foreign_keys")
	require.NoError(t, err)
	fk, err := rs.Int64(0, "foreign_keys")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fk)
}

func TestOpen_SeededPricesScenario(t *testing.T) {
	currencies := []string{"usd", "eur", "rub"}
	cols := []ColumnSpec{Column("tokenId", TypeInteger, NotNull())}
	for _, c := range currencies {
		cols = append(cols, Column(c, TypeReal, NotNull(), Default("0")))
	}
	prices := MustDefineTable("fiatPrices", cols...)

	cb := &TablesCallback{
		Tables: []*TableSchema{prices},
		Seeds:  map[string][]map[string]any{"fiatPrices": {{"tokenId": 0}}},
	}

	path := filepath.Join(t.TempDir(), "wallet.db")
	db := OpenTestDatabase(t, path, 1, cb)
	require.NoError(t, db.Close(context.Background()))

	// Повторное открытие не дублирует начальную строку
	db = OpenTestDatabase(t, path, 1, cb)
	assert.Equal(t, 1, CountRows(t, db, "fiatPrices"))

	rs, err := db.Read(context.Background(), "SELECT * FROM fiatPrices WHERE tokenId = 0")
	require.NoError(t, err)
	require.Equal(t, 1, rs.Len())
	for _, c := range currencies {
		v, err := rs.Float64(0, c)
		require.NoError(t, err)
		assert.Zero(t, v, "column %s", c)
	}
}

func TestOpen_FailedCreateRollsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	ctx := context.Background()

	bad := newCountingCallback(parentTable)
	bad.failOn = "create"
	_, err := Open(ctx, path, 1, bad, TestOptions())
	require.Error(t, err)
	assert.Equal(t, int32(0), bad.opens.Load())

	// Следующее открытие начинает создание заново
	good := newCountingCallback(parentTable)
	db := OpenTestDatabase(t, path, 1, good)
	assert.Equal(t, int32(1), good.creates.Load())
	assert.True(t, TableExists(t, db, "parent"))
}

func TestOpen_Upgrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	ctx := context.Background()

	db := OpenTestDatabase(t, path, 1, NewTablesCallback(parentTable))
	require.NoError(t, db.Close(ctx))

	cb := &upgradingCallback{
		TablesCallback: NewTablesCallback(parentTable),
		Migrations: Migrations{
			{Version: 3, Statements: []string{"CREATE INDEX parent_email ON parent (email)"}},
			{Version: 2, Statements: []string{"ALTER TABLE parent ADD COLUMN email TEXT"}},
			{Version: 4, Statements: []string{"ALTER TABLE parent ADD COLUMN never TEXT"}},
		},
	}
	db = OpenTestDatabase(t, path, 3, cb)

	assert.Equal(t, [][2]int{{1, 3}}, cb.calls)
	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	MustExec(t, db, "INSERT INTO parent (name, email) VALUES ('p', 'p@example.com')")
	_, err = db.Read(ctx, "SELECT never FROM parent")
	assert.Error(t, err, "migration above the target version must not run")
}

func TestOpen_UpgradeWithoutUpgraderBumpsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	ctx := context.Background()

	db := OpenTestDatabase(t, path, 1, NewTablesCallback(parentTable))
	require.NoError(t, db.Close(ctx))

	db = OpenTestDatabase(t, path, 2, NewTablesCallback(parentTable))
	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestOpen_Downgrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.db")
	ctx := context.Background()

	db := OpenTestDatabase(t, path, 2, NewTablesCallback(parentTable))
	require.NoError(t, db.Close(ctx))

	_, err := Open(ctx, path, 1, NewTablesCallback(parentTable), TestOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDowngrade)
	assert.Equal(t, shared.KindInvalid, shared.KindOf(err))
}

func TestOpen_Validation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wallet.db")
	cb := NewTablesCallback(parentTable)

	tests := []struct {
		name    string
		path    string
		version int
		cb      Callback
	}{
		{"empty path", "", 1, cb},
		{"zero version", path, 0, cb},
		{"negative version", path, -1, cb},
		{"nil callback", path, 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(ctx, tt.path, tt.version, tt.cb, TestOptions())
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestOpen_NotADatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	junk := make([]byte, 4096)
	for i := range junk {
		junk[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, junk, 0o644))

	_, err := Open(context.Background(), path, 1, NewTablesCallback(parentTable), TestOptions())
	require.Error(t, err)
	assert.Equal(t, shared.KindCorrupt, shared.KindOf(err), "got %v", err)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "wallet.db")
	OpenTestDatabase(t, path, 1, NewTablesCallback(parentTable))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestDatabase_PingStatsClose(t *testing.T) {
	db := NewTestDatabase(t, NewTablesCallback(parentTable))
	ctx := context.Background()

	require.NoError(t, db.Ping(ctx))

	for i := 0; i < 3; i++ {
		MustExec(t, db, fmt.Sprintf("INSERT INTO parent (name) VALUES ('p%d')", i))
	}
	stats := db.Stats()
	assert.Equal(t, uint64(4), stats.Writer.Granted)
	assert.False(t, stats.Writer.InFlight)
	assert.Equal(t, 2, stats.Readers.MaxOpenConnections)

	require.NoError(t, db.Close(ctx))
	assert.NoError(t, db.Close(ctx), "second Close returns the first result")
}
