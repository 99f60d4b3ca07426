package boundary_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftscan/driftscan/internal/boundary"
	"github.com/driftscan/driftscan/pkg/models"
)

func TestScanExtractsAccessPointsAndClassifiesFields(t *testing.T) {
	files := map[string][]byte{
		"repo.go": []byte(`package repo
func Load() {
	db.Where("email: ?, password: ?", e, p).Find("users")
}
`),
	}
	result := boundary.New().Scan(files)
	require.NotEmpty(t, result.AccessPoints)
	var foundEmail, foundPassword bool
	for _, f := range result.SensitiveFields {
		if f.Field == "email" {
			foundEmail = true
			require.Equal(t, models.SensitivityPII, f.Sensitivity)
		}
		if f.Field == "password" {
			foundPassword = true
			require.Equal(t, models.SensitivityCredentials, f.Sensitivity)
		}
	}
	require.True(t, foundEmail)
	require.True(t, foundPassword)
}

func TestScanFlagsSecretLiteralButNotPlaceholder(t *testing.T) {
	files := map[string][]byte{
		"config.go": []byte(`package config
const APIKey = "sk-abcdefghijklmnopqrstuvwx"
const Example = "your_api_key_here"
`),
	}
	result := boundary.New().Scan(files)
	require.Len(t, result.Secrets, 1)
	require.Equal(t, "provider-api-key", result.Secrets[0].Kind)
}

func TestScanFlagsDirectSecretEnvRead(t *testing.T) {
	files := map[string][]byte{
		"main.go": []byte(`package main
func main() {
	_ = os.Getenv("DB_PASSWORD")
}
`),
	}
	result := boundary.New().Scan(files)
	require.Len(t, result.EnvIssues, 1)
	require.Equal(t, "DB_PASSWORD", result.EnvIssues[0].Key)
}
