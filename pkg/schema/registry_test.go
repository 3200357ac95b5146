package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomeBrew_ResolvesEveryModule(t *testing.T) {
	r := HomeBrew()

	tests := []struct {
		table       string
		module      string
		userIDField string
	}{
		{"budget_transactions", ModuleBudget, "user_id"},
		{"savings_goals", ModuleBudget, "user_id"},
		{"workouts", ModuleWorkout, "user_id"},
		{"exercise_library", ModuleWorkout, "created_by"},
		{"meals", ModuleNutrition, "user_id"},
		{"habit_logs", ModuleHabits, "user_id"},
		{"todos", ModuleTodos, "user_id"},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			m, ok := r.ResolveModule(tt.table)
			require.True(t, ok)
			assert.Equal(t, tt.module, m.Name())

			cols, ok := r.ResolveColumns(tt.table, m)
			require.True(t, ok)
			assert.True(t, cols.Has("id"))

			assert.Equal(t, tt.userIDField, r.ResolveUserIDField(tt.table, m))
		})
	}
}

func TestRegistry_ResolveModule_Unknown(t *testing.T) {
	r := HomeBrew()

	m, ok := r.ResolveModule("not_a_real_table")
	assert.False(t, ok)
	assert.Nil(t, m)
}

func TestModule_UserIDField_Fallbacks(t *testing.T) {
	r, err := New([]ModuleDefinition{
		{
			Name:         "Overrides",
			UserIDField:  "owner_id",
			UserIDFields: map[string]string{"special": "author_id"},
			Tables: map[string]ColumnSchema{
				"special": {"author_id": req(TypeUUID)},
				"plain":   {"owner_id": req(TypeUUID)},
			},
		},
		{
			Name:   "Bare",
			Tables: map[string]ColumnSchema{"things": {"user_id": req(TypeUUID)}},
		},
	})
	require.NoError(t, err)

	overrides, _ := r.Module("Overrides")
	bare, _ := r.Module("Bare")

	assert.Equal(t, "author_id", r.ResolveUserIDField("special", overrides))
	assert.Equal(t, "owner_id", r.ResolveUserIDField("plain", overrides))
	assert.Equal(t, DefaultUserIDField, r.ResolveUserIDField("things", bare))
}

func TestNew_RejectsTableClaimedTwice(t *testing.T) {
	_, err := New([]ModuleDefinition{
		{Name: "A", Tables: map[string]ColumnSchema{"shared": {"user_id": req(TypeUUID)}}},
		{Name: "B", Tables: map[string]ColumnSchema{"shared": {"user_id": req(TypeUUID)}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared")
}

func TestNew_RejectsMissingUserIDColumn(t *testing.T) {
	_, err := New([]ModuleDefinition{
		{Name: "A", Tables: map[string]ColumnSchema{"rows": {"id": req(TypeUUID)}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_id")
}

func TestNew_TableWithoutColumns(t *testing.T) {
	r, err := New([]ModuleDefinition{
		{Name: "A", Tables: map[string]ColumnSchema{"orphan": nil}},
	})
	require.NoError(t, err)

	m, ok := r.ResolveModule("orphan")
	require.True(t, ok)

	_, ok = r.ResolveColumns("orphan", m)
	assert.False(t, ok)
}

func TestRegistry_IsolatedFromInputMutation(t *testing.T) {
	defs := []ModuleDefinition{
		{Name: "A", Tables: map[string]ColumnSchema{"rows": {"user_id": req(TypeUUID)}}},
	}
	r, err := New(defs)
	require.NoError(t, err)

	defs[0].Tables["rows"]["injected"] = opt(TypeText)

	m, _ := r.ResolveModule("rows")
	cols, _ := r.ResolveColumns("rows", m)
	assert.False(t, cols.Has("injected"))
}

func TestParse(t *testing.T) {
	doc := `
modules:
  - name: Journal
    user_id_field: author_id
    tables:
      journal_entries:
        id: {type: uuid, required: true}
        author_id: {type: uuid, required: true}
        mood: {type: integer}
        written_on: {type: date, required: true}
`
	r, err := Parse([]byte(doc))
	require.NoError(t, err)

	m, ok := r.ResolveModule("journal_entries")
	require.True(t, ok)
	assert.Equal(t, "Journal", m.Name())
	assert.Equal(t, "author_id", r.ResolveUserIDField("journal_entries", m))

	cols, ok := r.ResolveColumns("journal_entries", m)
	require.True(t, ok)
	assert.Equal(t, TypeDate, cols["written_on"].Type)
	assert.True(t, cols["written_on"].Required)
	assert.Equal(t, []string{"author_id", "id", "mood", "written_on"}, cols.Names())
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte("modules: []"))
	require.Error(t, err)
}

func TestLoadFile_EmptyPathReturnsBuiltIn(t *testing.T) {
	r, err := LoadFile("")
	require.NoError(t, err)
	assert.Len(t, r.Modules(), 5)
}
