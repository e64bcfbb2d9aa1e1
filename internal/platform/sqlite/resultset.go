package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"walletstore/internal/shared"
)

// ResultSet - материализованный результат запроса.
type ResultSet struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

func readResultSet(rows *sql.Rows) (*ResultSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{
		columns: cols,
		index:   make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if _, dup := rs.index[c]; !dup {
			rs.index[c] = i
		}
	}

	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rs.rows = append(rs.rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}

// Len возвращает количество строк
func (rs *ResultSet) Len() int {
	return len(rs.rows)
}

// Columns возвращает имена колонок результата
func (rs *ResultSet) Columns() []string {
	out := make([]string, len(rs.columns))
	copy(out, rs.columns)
	return out
}

// Value возвращает значение колонки col в строке row.
func (rs *ResultSet) Value(row int, col string) (any, error) {
	if row < 0 || row >= len(rs.rows) {
		return nil, fmt.Errorf("%w: row %d out of range [0, %d)", shared.ErrInvalid, row, len(rs.rows))
	}
	i, ok := rs.index[col]
	if !ok {
		return nil, fmt.Errorf("%w: unknown column %q", shared.ErrInvalid, col)
	}
	return rs.rows[row][i], nil
}

// IsNull сообщает, равно ли значение NULL. Неизвестная колонка считается NULL.
func (rs *ResultSet) IsNull(row int, col string) bool {
	v, err := rs.Value(row, col)
	return err != nil || v == nil
}

// Int64 возвращает целое значение колонки; NULL возвращается как 0.
func (rs *ResultSet) Int64(row int, col string) (int64, error) {
	var v int64
	err := rs.scanValue(row, col, &v)
	return v, err
}

// Float64 возвращает вещественное значение колонки; NULL возвращается как 0.
func (rs *ResultSet) Float64(row int, col string) (float64, error) {
	var v float64
	err := rs.scanValue(row, col, &v)
	return v, err
}

// String возвращает строковое значение колонки; NULL возвращается как "".
func (rs *ResultSet) String(row int, col string) (string, error) {
	var v string
	err := rs.scanValue(row, col, &v)
	return v, err
}

// Bytes возвращает значение BLOB колонки; NULL возвращается как nil.
func (rs *ResultSet) Bytes(row int, col string) ([]byte, error) {
	var v []byte
	err := rs.scanValue(row, col, &v)
	return v, err
}

// Scan копирует значения строки row в dest по порядку колонок.
func (rs *ResultSet) Scan(row int, dest ...any) error {
	if row < 0 || row >= len(rs.rows) {
		return fmt.Errorf("%w: row %d out of range [0, %d)", shared.ErrInvalid, row, len(rs.rows))
	}
	if len(dest) != len(rs.columns) {
		return fmt.Errorf("%w: expected %d destinations, got %d", shared.ErrInvalid, len(rs.columns), len(dest))
	}
	for i, d := range dest {
		if err := assign(d, rs.rows[row][i]); err != nil {
			return fmt.Errorf("column %q: %w", rs.columns[i], err)
		}
	}
	return nil
}

func (rs *ResultSet) scanValue(row int, col string, dest any) error {
	v, err := rs.Value(row, col)
	if err != nil {
		return err
	}
	if err := assign(dest, v); err != nil {
		return fmt.Errorf("column %q: %w", col, err)
	}
	return nil
}

// assign выполняет преобразование значения драйвера в dest.
// Драйвер возвращает int64, float64, string, []byte, time.Time или nil.
func assign(dest any, src any) error {
	switch d := dest.(type) {
	case *any:
		*d = src
		return nil
	case *int64:
		switch s := src.(type) {
		case nil:
			*d = 0
		case int64:
			*d = s
		case float64:
			*d = int64(s)
		case bool:
			*d = 0
			if s {
				*d = 1
			}
		default:
			return mismatch(src, dest)
		}
	case *int:
		var v int64
		if err := assign(&v, src); err != nil {
			return err
		}
		*d = int(v)
	case *float64:
		switch s := src.(type) {
		case nil:
			*d = 0
		case float64:
			*d = s
		case int64:
			*d = float64(s)
		default:
			return mismatch(src, dest)
		}
	case *bool:
		var v int64
		if err := assign(&v, src); err != nil {
			return err
		}
		*d = v != 0
	case *string:
		switch s := src.(type) {
		case nil:
			*d = ""
		case string:
			*d = s
		case []byte:
			*d = string(s)
		default:
			*d = fmt.Sprint(s)
		}
	case *[]byte:
		switch s := src.(type) {
		case nil:
			*d = nil
		case []byte:
			*d = append([]byte(nil), s...)
		case string:
			*d = []byte(s)
		default:
			return mismatch(src, dest)
		}
	case *time.Time:
		s, ok := src.(time.Time)
		if !ok && src != nil {
			return mismatch(src, dest)
		}
		*d = s
	case *sql.NullInt64:
		if src == nil {
			*d = sql.NullInt64{}
			return nil
		}
		d.Valid = true
		return assign(&d.Int64, src)
	case *sql.NullFloat64:
		if src == nil {
			*d = sql.NullFloat64{}
			return nil
		}
		d.Valid = true
		return assign(&d.Float64, src)
	case *sql.NullString:
		if src == nil {
			*d = sql.NullString{}
			return nil
		}
		d.Valid = true
		return assign(&d.String, src)
	default:
		return fmt.Errorf("%w: unsupported destination %T", shared.ErrInvalid, dest)
	}
	return nil
}

func mismatch(src, dest any) error {
	return fmt.Errorf("%w: cannot assign %T to %T", shared.ErrInvalid, src, dest)
}
