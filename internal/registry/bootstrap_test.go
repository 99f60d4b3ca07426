package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftscan/driftscan/pkg/config"
)

func TestRegisterDefaultsRegistersAllElevenDetectors(t *testing.T) {
	reg := New(Hooks{})
	require.NoError(t, RegisterDefaults(reg, config.DefaultConfig().Detectors))
	require.Equal(t, len(defaultDetectors), reg.Size())
}

func TestRegisterDefaultsHonorsPerCategoryEnablement(t *testing.T) {
	cfg := config.DefaultConfig().Detectors
	cfg.Routes = false
	cfg.Auth = true

	reg := New(Hooks{})
	require.NoError(t, RegisterDefaults(reg, cfg))

	results := reg.Query(Query{})
	enabled := map[string]bool{}
	for _, r := range results {
		enabled[r.ID] = r.Info.Enabled
	}
	require.False(t, enabled["api/routes"])
	require.True(t, enabled["auth/middleware"])
}

func TestRegisterDefaultsDetectorsAreConstructible(t *testing.T) {
	reg := New(Hooks{})
	require.NoError(t, RegisterDefaults(reg, config.DefaultConfig().Detectors))

	for _, d := range defaultDetectors {
		det, err := reg.Get(d.id)
		require.NoError(t, err)
		require.NotNil(t, det)
	}
}
