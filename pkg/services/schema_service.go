package services

import (
	"fmt"

	"github.com/homebrew-hq/homebrew-engine/pkg/apperrors"
	"github.com/homebrew-hq/homebrew-engine/pkg/schema"
)

// SchemaService exposes a read-only, JSON-friendly view of the registry.
type SchemaService interface {
	Describe() *SchemaView
	DescribeModule(name string) (*ModuleView, error)
}

// SchemaView lists every module in registry order.
type SchemaView struct {
	Modules []ModuleView `json:"modules"`
}

type ModuleView struct {
	Name   string      `json:"name"`
	Tables []TableView `json:"tables"`
}

type TableView struct {
	Name        string       `json:"name"`
	UserIDField string       `json:"user_id_field"`
	Columns     []ColumnView `json:"columns"`
}

type ColumnView struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type schemaService struct {
	registry *schema.Registry
	view     *SchemaView
}

// NewSchemaService builds the view once; the registry never changes.
func NewSchemaService(registry *schema.Registry) SchemaService {
	s := &schemaService{registry: registry}
	s.view = s.build()
	return s
}

var _ SchemaService = (*schemaService)(nil)

func (s *schemaService) Describe() *SchemaView {
	return s.view
}

func (s *schemaService) DescribeModule(name string) (*ModuleView, error) {
	for i := range s.view.Modules {
		if s.view.Modules[i].Name == name {
			return &s.view.Modules[i], nil
		}
	}
	return nil, fmt.Errorf("module %q: %w", name, apperrors.ErrNotFound)
}

func (s *schemaService) build() *SchemaView {
	view := &SchemaView{Modules: make([]ModuleView, 0)}
	for _, m := range s.registry.Modules() {
		mv := ModuleView{Name: m.Name(), Tables: make([]TableView, 0)}
		for _, table := range m.Tables() {
			tv := TableView{
				Name:        table,
				UserIDField: s.registry.ResolveUserIDField(table, m),
				Columns:     make([]ColumnView, 0),
			}
			if cols, ok := m.Columns(table); ok {
				for _, name := range cols.Names() {
					tv.Columns = append(tv.Columns, ColumnView{
						Name:     name,
						Type:     string(cols[name].Type),
						Required: cols[name].Required,
					})
				}
			}
			mv.Tables = append(mv.Tables, tv)
		}
		view.Modules = append(view.Modules, mv)
	}
	return view
}
