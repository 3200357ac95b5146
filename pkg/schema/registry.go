// Package schema holds the read-only registry of HomeBrew modules, their
// tables and column definitions, and the column that identifies the owning
// user of every row. A Registry is built once at startup and passed to the
// query dispatcher.
package schema

import (
	"fmt"
	"sort"
)

// DefaultUserIDField is used when a module declares no user-id field at all.
const DefaultUserIDField = "user_id"

// ColumnType is the declared primitive type of a column. Only TypeUUID,
// TypeNumeric, TypeDoublePrecision and TypeDate drive value coercion; every
// other type is passed through to the store unchanged.
type ColumnType string

const (
	TypeUUID            ColumnType = "uuid"
	TypeNumeric         ColumnType = "numeric"
	TypeDoublePrecision ColumnType = "double precision"
	TypeDate            ColumnType = "date"
	TypeText            ColumnType = "text"
	TypeInteger         ColumnType = "integer"
	TypeBoolean         ColumnType = "boolean"
	TypeTimestamp       ColumnType = "timestamp with time zone"
)

// Column describes a single column.
type Column struct {
	Type     ColumnType `yaml:"type" json:"type"`
	Required bool       `yaml:"required" json:"required"`
}

// ColumnSchema maps column name to its definition.
type ColumnSchema map[string]Column

// Has reports whether the schema declares column.
func (s ColumnSchema) Has(column string) bool {
	_, ok := s[column]
	return ok
}

// Names returns the declared column names, sorted.
func (s ColumnSchema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModuleDefinition is the static input a Module is built from. A table listed
// with a nil ColumnSchema is owned by the module but has no column whitelist.
type ModuleDefinition struct {
	Name         string                  `yaml:"name"`
	UserIDField  string                  `yaml:"user_id_field"`
	UserIDFields map[string]string       `yaml:"user_id_fields"`
	Tables       map[string]ColumnSchema `yaml:"tables"`
}

// Module is a named group of tables belonging to one feature area.
type Module struct {
	name         string
	userIDField  string
	userIDFields map[string]string
	tables       map[string]ColumnSchema
}

// Name returns the module name, e.g. "Budget".
func (m *Module) Name() string {
	return m.name
}

// Tables returns the module's table names, sorted.
func (m *Module) Tables() []string {
	names := make([]string, 0, len(m.tables))
	for name := range m.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Owns reports whether table belongs to this module.
func (m *Module) Owns(table string) bool {
	_, ok := m.tables[table]
	return ok
}

// Columns returns the column schema declared for table.
func (m *Module) Columns(table string) (ColumnSchema, bool) {
	cols, ok := m.tables[table]
	if !ok || len(cols) == 0 {
		return nil, false
	}
	return cols, true
}

// UserIDField resolves the owner column for table: a per-table override
// first, then the module-wide field, then DefaultUserIDField.
func (m *Module) UserIDField(table string) string {
	if field, ok := m.userIDFields[table]; ok && field != "" {
		return field
	}
	if m.userIDField != "" {
		return m.userIDField
	}
	return DefaultUserIDField
}

type tableEntry struct {
	module      *Module
	userIDField string
}

// Registry indexes every registered table to its owning module and resolved
// user-id field. It is immutable after New returns and safe for concurrent use.
type Registry struct {
	modules []*Module
	byName  map[string]*Module
	byTable map[string]tableEntry
}

// New builds a Registry from module definitions. It fails when a table is
// claimed by more than one module or when a resolved user-id field is missing
// from a declared column schema.
func New(defs []ModuleDefinition) (*Registry, error) {
	r := &Registry{
		byName:  make(map[string]*Module, len(defs)),
		byTable: make(map[string]tableEntry),
	}

	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("module name is required")
		}
		if _, dup := r.byName[def.Name]; dup {
			return nil, fmt.Errorf("duplicate module %q", def.Name)
		}

		m := &Module{
			name:         def.Name,
			userIDField:  def.UserIDField,
			userIDFields: make(map[string]string, len(def.UserIDFields)),
			tables:       make(map[string]ColumnSchema, len(def.Tables)),
		}
		for table, field := range def.UserIDFields {
			if _, ok := def.Tables[table]; !ok {
				return nil, fmt.Errorf("module %s: user id override for unknown table %q", def.Name, table)
			}
			m.userIDFields[table] = field
		}
		for table, cols := range def.Tables {
			copied := make(ColumnSchema, len(cols))
			for name, col := range cols {
				copied[name] = col
			}
			if len(cols) == 0 {
				copied = nil
			}
			m.tables[table] = copied
		}

		for _, table := range m.Tables() {
			if owner, taken := r.byTable[table]; taken {
				return nil, fmt.Errorf("table %q is claimed by modules %s and %s", table, owner.module.name, m.name)
			}
			field := m.UserIDField(table)
			if cols := m.tables[table]; cols != nil && !cols.Has(field) {
				return nil, fmt.Errorf("module %s: table %s has no user id column %q", m.name, table, field)
			}
			r.byTable[table] = tableEntry{module: m, userIDField: field}
		}

		r.modules = append(r.modules, m)
		r.byName[m.name] = m
	}

	return r, nil
}

// ResolveModule returns the module owning table.
func (r *Registry) ResolveModule(table string) (*Module, bool) {
	entry, ok := r.byTable[table]
	if !ok {
		return nil, false
	}
	return entry.module, true
}

// ResolveColumns returns the column schema of table within module.
func (r *Registry) ResolveColumns(table string, module *Module) (ColumnSchema, bool) {
	if module == nil {
		return nil, false
	}
	return module.Columns(table)
}

// ResolveUserIDField returns the column that must be filtered to scope rows
// of table to a single user.
func (r *Registry) ResolveUserIDField(table string, module *Module) string {
	if entry, ok := r.byTable[table]; ok && entry.module == module {
		return entry.userIDField
	}
	if module != nil {
		return module.UserIDField(table)
	}
	return DefaultUserIDField
}

// Modules returns modules in definition order.
func (r *Registry) Modules() []*Module {
	out := make([]*Module, len(r.modules))
	copy(out, r.modules)
	return out
}

// Module looks up a module by name.
func (r *Registry) Module(name string) (*Module, bool) {
	m, ok := r.byName[name]
	return m, ok
}
