package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/echelon/id"
	"github.com/xraph/echelon/role"
)

func TestMigrationIndexesCoverEveryCollection(t *testing.T) {
	idx := migrationIndexes()
	for _, col := range []string{colCustomRoles, colAssignments, colPermissions, colGrants, colAuditLog} {
		assert.NotEmpty(t, idx[col], "missing indexes for %s", col)
	}
}

func TestLiveRowIndexesArePartial(t *testing.T) {
	idx := migrationIndexes()
	for _, col := range []string{colCustomRoles, colAssignments, colGrants} {
		require.NotEmpty(t, idx[col])
		assert.NotNil(t, idx[col][0].Options, "first index on %s must carry options", col)
	}
	keys, ok := idx[colAssignments][0].Keys.(bson.D)
	require.True(t, ok)
	assert.Equal(t, "person_id", keys[0].Key)
	assert.Equal(t, "tenant_id", keys[2].Key)
}

func TestCustomRoleModelTracksDeletion(t *testing.T) {
	r := &role.CustomRole{ID: id.NewCustomRoleID(), TenantID: "t1", RoleType: "lead", Level: 2}
	m := customRoleToModel(r)
	assert.False(t, m.Deleted)

	ts := now()
	r.DeletedAt = &ts
	m = customRoleToModel(r)
	assert.True(t, m.Deleted)

	back := customRoleFromModel(m)
	assert.Equal(t, r.ID, back.ID)
	assert.True(t, back.IsDeleted())
}
