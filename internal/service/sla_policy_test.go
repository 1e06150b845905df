package service

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSLAPolicyBudgetFor(t *testing.T) {
	policy := NewSLAPolicy(DefaultSLABudget, nil)

	cases := map[string]time.Duration{
		DepartmentRoads:       48 * time.Hour,
		DepartmentWater:       24 * time.Hour,
		DepartmentElectricity: 12 * time.Hour,
		DepartmentSanitation:  36 * time.Hour,
		DepartmentPublicWorks: 48 * time.Hour,
		DepartmentGeneral:     72 * time.Hour,
		"Parks & Recreation":  72 * time.Hour,
		"water supply":        72 * time.Hour,
	}
	for dept, expected := range cases {
		assert.Equal(t, expected, policy.BudgetFor(strPtr(dept)), dept)
	}
	assert.Equal(t, 72*time.Hour, policy.BudgetFor(nil))
}

func TestSLAPolicyDeadlineFor(t *testing.T) {
	policy := NewSLAPolicy(0, nil)
	created := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, created.Add(24*time.Hour), policy.DeadlineFor(created, strPtr(DepartmentWater)))
	assert.Equal(t, created.Add(72*time.Hour), policy.DeadlineFor(created, nil))
}

func TestLoadPolicyOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `default_hours: 96
departments:
  Water Supply: 12
  Parks & Recreation: 120
priority:
  high: 3
  critical: 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	overrides, err := LoadPolicyOverrides(path)
	require.NoError(t, err)
	require.NotNil(t, overrides)
	assert.Equal(t, 3, overrides.Priority.High)
	assert.Equal(t, 7, overrides.Priority.Critical)

	policy := NewSLAPolicy(DefaultSLABudget, overrides)
	assert.Equal(t, 12*time.Hour, policy.BudgetFor(strPtr(DepartmentWater)))
	assert.Equal(t, 120*time.Hour, policy.BudgetFor(strPtr("Parks & Recreation")))
	assert.Equal(t, 48*time.Hour, policy.BudgetFor(strPtr(DepartmentRoads)))
	assert.Equal(t, 96*time.Hour, policy.BudgetFor(nil))
}

func TestLoadPolicyOverridesAbsent(t *testing.T) {
	overrides, err := LoadPolicyOverrides("")
	require.NoError(t, err)
	assert.Nil(t, overrides)

	overrides, err = LoadPolicyOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, overrides)
}

func TestLoadPolicyOverridesInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("departments: [unterminated"), 0o600))

	_, err := LoadPolicyOverrides(path)
	require.Error(t, err)
}
