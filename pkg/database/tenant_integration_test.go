//go:build integration

package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebrew-hq/homebrew-engine/pkg/database"
	"github.com/homebrew-hq/homebrew-engine/pkg/testhelpers"
)

func TestWithTenant_SetsAndResetsUserID(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := context.Background()

	scope, err := engineDB.DB.WithTenant(ctx, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)

	var current string
	err = scope.Conn.QueryRow(ctx, "SELECT current_setting('app.current_user_id', true)").Scan(&current)
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", current)

	scope.Close()

	// A fresh connection must not inherit the previous user.
	other, err := engineDB.DB.WithTenant(ctx, "22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)
	defer other.Close()

	err = other.Conn.QueryRow(ctx, "SELECT current_setting('"+database.UserIDSetting+"', true)").Scan(&current)
	require.NoError(t, err)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", current)
}

func TestWithTenant_EmptyUserID(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)

	_, err := engineDB.DB.WithTenant(context.Background(), "")
	assert.ErrorIs(t, err, database.ErrEmptyUserID)
}
