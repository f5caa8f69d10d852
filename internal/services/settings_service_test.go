package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collab-service/internal/apperr"
	"collab-service/internal/memstore"
	"collab-service/internal/mocks"
	"collab-service/internal/models"
)

func TestSettingsDefaultsAreStored(t *testing.T) {
	store := memstore.New()
	svc := NewSettingsService(store, nil, nil)

	got, err := svc.Get(context.Background(), team)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultLineCount, got.LineCount)
	assert.Equal(t, models.DefaultCooldownMinutes, got.CooldownMinutes)

	again, err := svc.Get(context.Background(), team)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestSettingsUpdate(t *testing.T) {
	audit := &auditRecorder{}
	svc := NewSettingsService(memstore.New(), audit, nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, team, "u1", models.RoleMember, 10, 5)
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))

	bad := []struct {
		lines    int
		cooldown float64
	}{
		{0, 30},
		{101, 30},
		{5, 0.4},
		{5, 1441},
	}
	for _, b := range bad {
		_, err := svc.Update(ctx, team, "admin", models.RoleAdmin, b.lines, b.cooldown)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), b)
	}
	assert.Empty(t, audit.entries)

	updated, err := svc.Update(ctx, team, "admin", models.RoleAdmin, 100, 0.5)
	require.NoError(t, err)
	assert.Equal(t, "admin", updated.UpdatedBy)

	got, err := svc.Get(ctx, team)
	require.NoError(t, err)
	assert.Equal(t, 100, got.LineCount)
	assert.Equal(t, 0.5, got.CooldownMinutes)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, "100", audit.entries[0].Fields["line_count"])
}

func TestPatchRejectsMemberBeforeTouchingStore(t *testing.T) {
	repo := new(mocks.SettingsRepositoryMock)
	svc := NewSettingsService(repo, nil, nil)
	lines := 10

	_, err := svc.Patch(context.Background(), team, "u1", models.RoleMember, SettingsPatch{LineCount: &lines})
	assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	repo.AssertNotCalled(t, "GetOrCreateSettings", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "UpsertSettings", mock.Anything, mock.Anything)
}

func TestPatchKeepsOmittedFields(t *testing.T) {
	svc := NewSettingsService(memstore.New(), nil, nil)
	ctx := context.Background()
	cooldown := 2.0

	got, err := svc.Patch(ctx, team, "admin", models.RoleAdmin, SettingsPatch{CooldownMinutes: &cooldown})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultLineCount, got.LineCount)
	assert.Equal(t, 2.0, got.CooldownMinutes)

	lines := 7
	got, err = svc.Patch(ctx, team, "admin", models.RoleAdmin, SettingsPatch{LineCount: &lines})
	require.NoError(t, err)
	assert.Equal(t, 7, got.LineCount)
	assert.Equal(t, 2.0, got.CooldownMinutes)
}
