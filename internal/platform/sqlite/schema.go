package sqlite

import (
	"fmt"
	"regexp"
	"strings"

	"walletstore/internal/shared"
)

// identifierPattern ограничивает имена таблиц и колонок SQL-идентификаторами.
// Имена подставляются в DDL без параметров, поэтому экранирование не требуется.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ColumnType определяет класс хранения колонки SQLite
type ColumnType string

const (
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
	TypeText    ColumnType = "TEXT"
	TypeBlob    ColumnType = "BLOB"
)

func (t ColumnType) valid() bool {
	switch t {
	case TypeInteger, TypeReal, TypeText, TypeBlob:
		return true
	}
	return false
}

// RefAction определяет действие внешнего ключа при удалении/обновлении
type RefAction string

const (
	RefNone       RefAction = ""
	RefNoAction   RefAction = "NO ACTION"
	RefRestrict   RefAction = "RESTRICT"
	RefSetNull    RefAction = "SET NULL"
	RefSetDefault RefAction = "SET DEFAULT"
	RefCascade    RefAction = "CASCADE"
)

// Reference описывает внешний ключ колонки.
type Reference struct {
	Table    string
	Column   string
	OnDelete RefAction
	OnUpdate RefAction
}

// ColumnSpec описывает одну колонку таблицы.
type ColumnSpec struct {
	Name          string
	Type          ColumnType
	NotNull       bool
	Default       string // SQL-литерал, используется только при HasDefault
	HasDefault    bool
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	References    *Reference
}

// ColumnOption настраивает ColumnSpec.
type ColumnOption func(*ColumnSpec)

// Column создаёт описание колонки с указанными опциями.
func Column(name string, typ ColumnType, opts ...ColumnOption) ColumnSpec {
	c := ColumnSpec{Name: name, Type: typ}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NotNull добавляет ограничение NOT NULL
func NotNull() ColumnOption {
	return func(c *ColumnSpec) { c.NotNull = true }
}

// Default задаёт значение по умолчанию в виде SQL-литерала ("0", "-1", "'abc'")
func Default(literal string) ColumnOption {
	return func(c *ColumnSpec) {
		c.Default = literal
		c.HasDefault = true
	}
}

// PrimaryKey помечает колонку первичным ключом
func PrimaryKey() ColumnOption {
	return func(c *ColumnSpec) { c.PrimaryKey = true }
}

// AutoIncrement включает AUTOINCREMENT (только для INTEGER PRIMARY KEY)
func AutoIncrement() ColumnOption {
	return func(c *ColumnSpec) { c.AutoIncrement = true }
}

// Unique добавляет ограничение UNIQUE
func Unique() ColumnOption {
	return func(c *ColumnSpec) { c.Unique = true }
}

// References добавляет внешний ключ на table(column)
func References(table, column string, onDelete, onUpdate RefAction) ColumnOption {
	return func(c *ColumnSpec) {
		c.References = &Reference{Table: table, Column: column, OnDelete: onDelete, OnUpdate: onUpdate}
	}
}

func (c ColumnSpec) validate() error {
	if c.Name == "" {
		return shared.Validationf("column name is empty")
	}
	if !identifierPattern.MatchString(c.Name) {
		return shared.Validationf("column name %q is not a valid identifier", c.Name)
	}
	if !c.Type.valid() {
		return shared.Validationf("column %q has unsupported type %q", c.Name, c.Type)
	}
	if c.HasDefault && strings.TrimSpace(c.Default) == "" {
		return shared.Validationf("column %q has an empty default literal", c.Name)
	}
	if c.AutoIncrement && (!c.PrimaryKey || c.Type != TypeInteger) {
		return shared.Validationf("column %q: AUTOINCREMENT requires INTEGER PRIMARY KEY", c.Name)
	}
	if ref := c.References; ref != nil {
		if !identifierPattern.MatchString(ref.Table) || !identifierPattern.MatchString(ref.Column) {
			return shared.Validationf("column %q references invalid target %q(%q)", c.Name, ref.Table, ref.Column)
		}
	}
	return nil
}

func (c ColumnSpec) render(b *strings.Builder) {
	b.WriteString(c.Name)
	b.WriteByte(' ')
	b.WriteString(string(c.Type))
	if c.PrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if c.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.HasDefault {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	if ref := c.References; ref != nil {
		fmt.Fprintf(b, " REFERENCES %s(%s)", ref.Table, ref.Column)
		if ref.OnDelete != RefNone {
			b.WriteString(" ON DELETE ")
			b.WriteString(string(ref.OnDelete))
		}
		if ref.OnUpdate != RefNone {
			b.WriteString(" ON UPDATE ")
			b.WriteString(string(ref.OnUpdate))
		}
	}
}

// TableSchema - неизменяемое описание таблицы. Рендерит DDL по запросу.
type TableSchema struct {
	name    string
	columns []ColumnSpec
	index   map[string]int
}

// Statement - SQL-выражение с аргументами.
type Statement struct {
	SQL  string
	Args []any
}

// DefineTable проверяет определение таблицы и возвращает TableSchema.
// Ошибки определения возвращаются сразу, а не при выполнении запроса.
func DefineTable(name string, columns ...ColumnSpec) (*TableSchema, error) {
	if name == "" {
		return nil, shared.Validationf("table name is empty")
	}
	if !identifierPattern.MatchString(name) {
		return nil, shared.Validationf("table name %q is not a valid identifier", name)
	}
	if len(columns) == 0 {
		return nil, shared.Validationf("table %q has no columns", name)
	}

	t := &TableSchema{
		name:    name,
		columns: make([]ColumnSpec, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if err := c.validate(); err != nil {
			return nil, shared.Wrapf(err, "table %q", name)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, shared.Validationf("table %q: duplicate column %q", name, c.Name)
		}
		if c.References != nil {
			ref := *c.References
			c.References = &ref
		}
		t.columns[i] = c
		t.index[c.Name] = i
	}
	return t, nil
}

// MustDefineTable аналогичен DefineTable, но паникует при ошибке.
// Предназначен для объявления таблиц на уровне пакета.
func MustDefineTable(name string, columns ...ColumnSpec) *TableSchema {
	t, err := DefineTable(name, columns...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name возвращает имя таблицы
func (t *TableSchema) Name() string {
	return t.name
}

// Columns возвращает копию списка колонок в порядке объявления
func (t *TableSchema) Columns() []ColumnSpec {
	out := make([]ColumnSpec, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames возвращает имена колонок в порядке объявления
func (t *TableSchema) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn сообщает, объявлена ли колонка в таблице
func (t *TableSchema) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// CreateStatement рендерит детерминированный CREATE TABLE IF NOT EXISTS.
func (t *TableSchema) CreateStatement() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(t.name)
	b.WriteString(" (")
	for i, c := range t.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		c.render(&b)
	}
	b.WriteString(")")
	return b.String()
}

// SeedStatement рендерит INSERT одной строки начальных данных.
// Колонки перечисляются в порядке объявления, а не в порядке обхода map.
func (t *TableSchema) SeedStatement(row map[string]any) (Statement, error) {
	if len(row) == 0 {
		return Statement{}, shared.Validationf("table %q: seed row is empty", t.name)
	}
	for col := range row {
		if !t.HasColumn(col) {
			return Statement{}, shared.Validationf("table %q: unknown seed column %q", t.name, col)
		}
	}

	cols := make([]string, 0, len(row))
	args := make([]any, 0, len(row))
	for _, c := range t.columns {
		if v, ok := row[c.Name]; ok {
			cols = append(cols, c.Name)
			args = append(args, v)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(cols, ", "), placeholders)
	return Statement{SQL: query, Args: args}, nil
}
