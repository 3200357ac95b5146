package schema

import "fmt"

// Module names of the built-in HomeBrew registry.
const (
	ModuleBudget    = "Budget"
	ModuleWorkout   = "Workout"
	ModuleNutrition = "Nutrition"
	ModuleHabits    = "Habits"
	ModuleTodos     = "Todos"
)

func req(t ColumnType) Column { return Column{Type: t, Required: true} }
func opt(t ColumnType) Column { return Column{Type: t} }

// HomeBrewModules returns the definitions of the built-in modules. Workout
// resolves its owner column per table; Todos declares none and falls back to
// DefaultUserIDField.
func HomeBrewModules() []ModuleDefinition {
	return []ModuleDefinition{
		{
			Name:        ModuleBudget,
			UserIDField: "user_id",
			Tables: map[string]ColumnSchema{
				"budget_transactions": {
					"id":          req(TypeUUID),
					"user_id":     req(TypeUUID),
					"amount":      req(TypeNumeric),
					"type":        req(TypeText),
					"category_id": opt(TypeUUID),
					"description": opt(TypeText),
					"date":        req(TypeDate),
					"created_at":  opt(TypeTimestamp),
				},
				"budget_categories": {
					"id":            req(TypeUUID),
					"user_id":       req(TypeUUID),
					"name":          req(TypeText),
					"type":          req(TypeText),
					"monthly_limit": opt(TypeNumeric),
					"color":         opt(TypeText),
					"created_at":    opt(TypeTimestamp),
				},
				"savings_goals": {
					"id":             req(TypeUUID),
					"user_id":        req(TypeUUID),
					"name":           req(TypeText),
					"target_amount":  req(TypeNumeric),
					"current_amount": opt(TypeNumeric),
					"target_date":    opt(TypeDate),
					"created_at":     opt(TypeTimestamp),
				},
			},
		},
		{
			Name: ModuleWorkout,
			UserIDFields: map[string]string{
				"workouts":          "user_id",
				"workout_exercises": "user_id",
				"exercise_library":  "created_by",
			},
			Tables: map[string]ColumnSchema{
				"workouts": {
					"id":               req(TypeUUID),
					"user_id":          req(TypeUUID),
					"name":             req(TypeText),
					"date":             req(TypeDate),
					"duration_minutes": opt(TypeInteger),
					"notes":            opt(TypeText),
					"created_at":       opt(TypeTimestamp),
				},
				"workout_exercises": {
					"id":          req(TypeUUID),
					"user_id":     req(TypeUUID),
					"workout_id":  req(TypeUUID),
					"exercise_id": req(TypeUUID),
					"sets":        opt(TypeInteger),
					"reps":        opt(TypeInteger),
					"weight":      opt(TypeDoublePrecision),
					"created_at":  opt(TypeTimestamp),
				},
				"exercise_library": {
					"id":           req(TypeUUID),
					"created_by":   req(TypeUUID),
					"name":         req(TypeText),
					"muscle_group": opt(TypeText),
					"equipment":    opt(TypeText),
					"created_at":   opt(TypeTimestamp),
				},
			},
		},
		{
			Name:        ModuleNutrition,
			UserIDField: "user_id",
			Tables: map[string]ColumnSchema{
				"meals": {
					"id":         req(TypeUUID),
					"user_id":    req(TypeUUID),
					"name":       req(TypeText),
					"meal_type":  opt(TypeText),
					"date":       req(TypeDate),
					"calories":   opt(TypeNumeric),
					"protein":    opt(TypeDoublePrecision),
					"carbs":      opt(TypeDoublePrecision),
					"fat":        opt(TypeDoublePrecision),
					"created_at": opt(TypeTimestamp),
				},
				"food_items": {
					"id":         req(TypeUUID),
					"user_id":    req(TypeUUID),
					"meal_id":    req(TypeUUID),
					"name":       req(TypeText),
					"quantity":   opt(TypeNumeric),
					"unit":       opt(TypeText),
					"calories":   opt(TypeNumeric),
					"created_at": opt(TypeTimestamp),
				},
				"nutrition_goals": {
					"id":             req(TypeUUID),
					"user_id":        req(TypeUUID),
					"daily_calories": req(TypeNumeric),
					"protein_target": opt(TypeDoublePrecision),
					"carbs_target":   opt(TypeDoublePrecision),
					"fat_target":     opt(TypeDoublePrecision),
					"start_date":     opt(TypeDate),
					"created_at":     opt(TypeTimestamp),
				},
			},
		},
		{
			Name:        ModuleHabits,
			UserIDField: "user_id",
			Tables: map[string]ColumnSchema{
				"habits": {
					"id":           req(TypeUUID),
					"user_id":      req(TypeUUID),
					"name":         req(TypeText),
					"description":  opt(TypeText),
					"frequency":    req(TypeText),
					"target_count": opt(TypeInteger),
					"is_active":    opt(TypeBoolean),
					"created_at":   opt(TypeTimestamp),
				},
				"habit_logs": {
					"id":             req(TypeUUID),
					"user_id":        req(TypeUUID),
					"habit_id":       req(TypeUUID),
					"completed_date": req(TypeDate),
					"count":          opt(TypeInteger),
					"notes":          opt(TypeText),
					"created_at":     opt(TypeTimestamp),
				},
			},
		},
		{
			Name: ModuleTodos,
			Tables: map[string]ColumnSchema{
				"todos": {
					"id":          req(TypeUUID),
					"user_id":     req(TypeUUID),
					"list_id":     opt(TypeUUID),
					"title":       req(TypeText),
					"description": opt(TypeText),
					"priority":    opt(TypeText),
					"status":      opt(TypeText),
					"due_date":    opt(TypeDate),
					"completed":   opt(TypeBoolean),
					"created_at":  opt(TypeTimestamp),
				},
				"todo_lists": {
					"id":         req(TypeUUID),
					"user_id":    req(TypeUUID),
					"name":       req(TypeText),
					"color":      opt(TypeText),
					"created_at": opt(TypeTimestamp),
				},
			},
		},
	}
}

// HomeBrew builds the built-in registry.
func HomeBrew() *Registry {
	r, err := New(HomeBrewModules())
	if err != nil {
		panic(fmt.Sprintf("schema: invalid built-in registry: %v", err))
	}
	return r
}
