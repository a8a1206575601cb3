package models_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/warranty_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSyncStateCreatesSingleton(t *testing.T) {
	db := setupModelsTestDB(t)

	state, err := models.GetSyncState(db)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStateDefaultID, state.ID)
	assert.Nil(t, state.LastModifiedAt)

	again, err := models.GetSyncState(db)
	require.NoError(t, err)
	assert.Equal(t, state.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.WarrantySyncState{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAdvanceSyncCursorMovesForwardOnly(t *testing.T) {
	db := setupModelsTestDB(t)

	first := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, models.AdvanceSyncCursor(db, first, "audit_1"))

	state, err := models.GetSyncState(db)
	require.NoError(t, err)
	require.NotNil(t, state.LastModifiedAt)
	assert.True(t, state.LastModifiedAt.Equal(first))
	assert.Equal(t, "audit_1", state.LastAuditID)

	// An older watermark must not rewind the cursor.
	older := first.Add(-time.Hour)
	require.NoError(t, models.AdvanceSyncCursor(db, older, "audit_stale"))

	state, err = models.GetSyncState(db)
	require.NoError(t, err)
	assert.True(t, state.LastModifiedAt.Equal(first))
	assert.Equal(t, "audit_1", state.LastAuditID)

	newer := first.Add(time.Hour)
	require.NoError(t, models.AdvanceSyncCursor(db, newer, "audit_2"))

	state, err = models.GetSyncState(db)
	require.NoError(t, err)
	assert.True(t, state.LastModifiedAt.Equal(newer))
	assert.Equal(t, "audit_2", state.LastAuditID)
}
