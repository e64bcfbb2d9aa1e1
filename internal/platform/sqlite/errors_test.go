package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sqlitelib "modernc.org/sqlite/lib"

	"walletstore/internal/shared"
)

func TestKindFromCode(t *testing.T) {
	tests := []struct {
		code int
		kind shared.Kind
	}{
		{sqlitelib.SQLITE_CONSTRAINT, shared.KindConstraint},
		{sqlitelib.SQLITE_CONSTRAINT_UNIQUE, shared.KindConstraint},
		{sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY, shared.KindConstraint},
		{sqlitelib.SQLITE_BUSY, shared.KindBusy},
		{sqlitelib.SQLITE_LOCKED, shared.KindBusy},
		{sqlitelib.SQLITE_CORRUPT, shared.KindCorrupt},
		{sqlitelib.SQLITE_NOTADB, shared.KindCorrupt},
		{sqlitelib.SQLITE_IOERR, shared.KindIO},
		{sqlitelib.SQLITE_FULL, shared.KindIO},
		{sqlitelib.SQLITE_CANTOPEN, shared.KindIO},
		{sqlitelib.SQLITE_READONLY, shared.KindInvalid},
		{sqlitelib.SQLITE_PERM, shared.KindIO},
		{sqlitelib.SQLITE_ERROR, shared.KindInvalid},
		{sqlitelib.SQLITE_MISMATCH, shared.KindInvalid},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code_%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.kind, kindFromCode(tt.code))
		})
	}
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate("exec", nil))

	err := translate("exec", context.Canceled)
	assert.True(t, shared.IsCanceled(err))
	assert.Equal(t, shared.KindCanceled, shared.KindOf(err))

	err = translate("acquire", fmt.Errorf("wait: %w", context.DeadlineExceeded))
	assert.Equal(t, shared.KindTimeout, shared.KindOf(err))

	plain := errors.New("something odd")
	err = translate("query", plain)
	assert.ErrorIs(t, err, plain)
	assert.ErrorIs(t, err, shared.ErrInvalid)

	// Переведённая ошибка не оборачивается повторно
	again := translate("other", err)
	assert.Same(t, err, again)
}

func TestStorageError(t *testing.T) {
	busy := &StorageError{Kind: shared.KindBusy, Op: "exec", Code: sqlitelib.SQLITE_BUSY, Err: errors.New("database is locked")}

	assert.True(t, busy.Temporary())
	assert.True(t, IsBusy(busy))
	assert.True(t, IsBusy(fmt.Errorf("insert account: %w", busy)))
	assert.False(t, IsConstraint(busy))
	assert.Contains(t, busy.Error(), "code 5")

	constraint := &StorageError{Kind: shared.KindConstraint, Op: "exec", Err: errors.New("UNIQUE constraint failed")}
	assert.False(t, constraint.Temporary())
	assert.ErrorIs(t, constraint, shared.ErrConstraint)
	assert.NotErrorIs(t, constraint, shared.ErrBusy)
}

func TestSentinels(t *testing.T) {
	assert.ErrorIs(t, ErrNestedTransaction, shared.ErrInvalid)
	assert.ErrorIs(t, ErrDowngrade, shared.ErrInvalid)
	assert.ErrorIs(t, ErrTicketReleased, shared.ErrUnavailable)
	assert.Equal(t, shared.KindUnavailable, shared.KindOf(unavailable("acquire", "queue is full")))
}

func TestTranslate_EngineErrors(t *testing.T) {
	tbl := MustDefineTable("items",
		Column("_id", TypeInteger, PrimaryKey(), AutoIncrement()),
		Column("name", TypeText, NotNull(), Unique()),
	)
	db := NewTestDatabase(t, NewTablesCallback(tbl))
	ctx := context.Background()

	MustExec(t, db, "INSERT INTO items (name) VALUES ('a')")

	t.Run("unique violation is constraint", func(t *testing.T) {
		err := db.WithTransaction(ctx, func(ctx context.Context, tx *Tx) error {
			_, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES ('a')")
			return err
		})
		require.Error(t, err)
		assert.True(t, IsConstraint(err))
		assert.ErrorIs(t, err, shared.ErrConstraint)

		var se *StorageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "exec", se.Op)
		assert.Equal(t, sqlitelib.SQLITE_CONSTRAINT, se.Code&0xff)
	})

	t.Run("not null violation is constraint", func(t *testing.T) {
		err := db.WithTransaction(ctx, func(ctx context.Context, tx *Tx) error {
			_, err := tx.Exec(ctx, "INSERT INTO items (name) VALUES (NULL)")
			return err
		})
		assert.Equal(t, shared.KindConstraint, shared.KindOf(err))
	})

	t.Run("syntax error is invalid", func(t *testing.T) {
		_, err := db.Read(ctx, "SELEC nothing")
		assert.Equal(t, shared.KindInvalid, shared.KindOf(err))
	})

	t.Run("write on read handle is invalid", func(t *testing.T) {
		_, err := db.Reader().Exec(ctx, "INSERT INTO items (name) VALUES ('b')")
		require.Error(t, err)
		assert.Equal(t, shared.KindInvalid, shared.KindOf(err))
		assert.False(t, shared.KindOf(err).Fatal())
		assert.Equal(t, 1, CountRows(t, db, "items"))
	})
}
