package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedLevels(t *testing.T) {
	tests := []struct {
		role   Role
		levels []Level
	}{
		{RoleIntern, []Level{LevelPublic}},
		{RoleHRManager, []Level{LevelPublic, LevelHR}},
		{RoleCFO, []Level{LevelPublic, LevelHR, LevelFinance}},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			levels, err := AllowedLevels(tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.levels, levels)
		})
	}
}

func TestAllowedLevelsUnknownRole(t *testing.T) {
	_, err := AllowedLevels(Role("contractor"))
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestAllowedLevelsReturnsCopy(t *testing.T) {
	levels, err := AllowedLevels(RoleIntern)
	require.NoError(t, err)
	levels[0] = LevelFinance

	again, err := AllowedLevels(RoleIntern)
	require.NoError(t, err)
	assert.Equal(t, []Level{LevelPublic}, again)
}

func TestDeriveRole(t *testing.T) {
	tests := []struct {
		employeeID string
		role       Role
		wantErr    bool
	}{
		{"in2041", RoleIntern, false},
		{"IN2041", RoleIntern, false},
		{"hr0007", RoleHRManager, false},
		{"ex0001", RoleCFO, false},
		{"  ex0001  ", RoleCFO, false},
		{"zz9999", "", true},
		{"i", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.employeeID, func(t *testing.T) {
			role, err := DeriveRole(tt.employeeID)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEmployeeID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.role, role)
		})
	}
}

func TestLevelForFilename(t *testing.T) {
	assert.Equal(t, LevelHR, LevelForFilename("hr_sensitive_salaries.txt"))
	assert.Equal(t, LevelFinance, LevelForFilename("finance_secret_merger.txt"))
	assert.Equal(t, LevelPublic, LevelForFilename("policy_public.txt"))
	assert.Equal(t, LevelPublic, LevelForFilename("random_notes.pdf"))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleCFO.Valid())
	assert.False(t, Role("root").Valid())
}
