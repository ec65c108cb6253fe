package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	s := NewStore()
	assert.True(t, s.IsEnabled(SymbolExtraction))
	assert.True(t, s.IsEnabled(NeighborExpansion))
	assert.False(t, s.IsEnabled(RequireCleanGit))
	assert.False(t, s.IsEnabled(AllowCreateFiles))
	assert.False(t, s.IsEnabled(LiveRescan))
}

func TestSetKnownAndUnknown(t *testing.T) {
	s := NewStore()
	assert.True(t, s.Set(RequireCleanGit, true))
	assert.True(t, s.IsEnabled(RequireCleanGit))

	assert.False(t, s.Set("no_such_flag", true))
	assert.False(t, s.IsEnabled("no_such_flag"))
}

func TestModelOverride(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.Model())
	s.SetModel("gpt-4o")
	assert.Equal(t, "gpt-4o", s.Model())
}

func TestAllReflectsState(t *testing.T) {
	s := NewStore()
	s.Set(LiveRescan, true)

	all := s.All()
	assert.Len(t, all, 5)

	byID := map[FeatureID]Info{}
	for _, f := range all {
		assert.NotEmpty(t, f.Name)
		assert.NotEmpty(t, f.Description)
		byID[f.ID] = f
	}
	assert.True(t, byID[LiveRescan].Enabled)
	assert.False(t, byID[AllowCreateFiles].Enabled)
}
