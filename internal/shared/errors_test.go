package shared_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"walletstore/internal/shared"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected shared.Kind
	}{
		{name: "nil", err: nil, expected: shared.KindUnknown},
		{name: "plain error", err: errors.New("boom"), expected: shared.KindUnknown},
		{name: "constraint", err: shared.ErrConstraint, expected: shared.KindConstraint},
		{name: "wrapped busy", err: shared.Wrap(shared.ErrBusy, "insert price"), expected: shared.KindBusy},
		{name: "corrupt", err: shared.ErrCorrupt, expected: shared.KindCorrupt},
		{name: "io", err: shared.ErrIO, expected: shared.KindIO},
		{name: "unavailable", err: shared.ErrUnavailable, expected: shared.KindUnavailable},
		{name: "invalid", err: shared.ErrInvalid, expected: shared.KindInvalid},
		{name: "validation", err: shared.Validationf("column %q", "x"), expected: shared.KindValidation},
		{name: "canceled", err: context.Canceled, expected: shared.KindCanceled},
		{name: "deadline", err: fmt.Errorf("acquire: %w", context.DeadlineExceeded), expected: shared.KindTimeout},
		{
			name:     "joined errors pick the most severe kind",
			err:      errors.Join(shared.ErrConstraint, shared.ErrCorrupt),
			expected: shared.KindCorrupt,
		},
		{
			name:     "cancellation wins over busy",
			err:      errors.Join(shared.ErrBusy, context.Canceled),
			expected: shared.KindCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shared.KindOf(tt.err))
			assert.True(t, shared.HasKind(tt.err, tt.expected))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "Constraint", shared.KindConstraint.String())
	assert.Equal(t, "Busy", shared.KindBusy.String())
	assert.Equal(t, "Unavailable", shared.KindUnavailable.String())
	assert.Equal(t, "Unknown", shared.Kind(100).String())
}

func TestKind_Fatal(t *testing.T) {
	assert.True(t, shared.KindCorrupt.Fatal())
	assert.True(t, shared.KindIO.Fatal())
	assert.False(t, shared.KindBusy.Fatal())
	assert.False(t, shared.KindConstraint.Fatal())
}

func TestMarkKind(t *testing.T) {
	t.Run("preserves original error", func(t *testing.T) {
		err := shared.MarkKind(sql.ErrNoRows, shared.KindNotFound)
		assert.True(t, shared.IsNotFound(err))
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Equal(t, "not found: sql: no rows in result set", err.Error())
	})

	t.Run("idempotent", func(t *testing.T) {
		err := shared.MarkKind(shared.ErrBusy, shared.KindBusy)
		assert.Same(t, shared.ErrBusy, err)
	})

	t.Run("nil error returns sentinel", func(t *testing.T) {
		assert.Equal(t, shared.ErrIO, shared.MarkKind(nil, shared.KindIO))
		assert.Nil(t, shared.MarkKind(nil, shared.KindCanceled))
	})

	t.Run("unknown kind leaves error unchanged", func(t *testing.T) {
		orig := errors.New("x")
		assert.Same(t, orig, shared.MarkKind(orig, shared.KindUnknown))
	})
}

func TestWrap(t *testing.T) {
	assert.Nil(t, shared.Wrap(nil, "ctx"))
	assert.Nil(t, shared.Wrapf(nil, "ctx %d", 1))

	base := errors.New("disk full")
	assert.Same(t, base, shared.Wrap(base, ""))
	assert.Equal(t, "write price: disk full", shared.Wrap(base, "write price").Error())
	assert.Equal(t, "write price 3: disk full", shared.Wrapf(base, "write price %d", 3).Error())
	assert.ErrorIs(t, shared.Wrapf(base, "x"), base)
}

func TestPredicates(t *testing.T) {
	assert.True(t, shared.IsConstraint(shared.Wrap(shared.ErrConstraint, "x")))
	assert.True(t, shared.IsBusy(shared.ErrBusy))
	assert.True(t, shared.IsUnavailable(shared.ErrUnavailable))
	assert.True(t, shared.IsValidation(shared.Validationf("bad")))
	assert.True(t, shared.IsTimeout(shared.ErrTimeout))
	assert.False(t, shared.IsCanceled(nil))
	assert.False(t, shared.IsTimeout(nil))
	assert.False(t, shared.IsBusy(errors.New("database is locked")))
}
