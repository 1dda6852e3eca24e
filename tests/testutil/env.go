package testutil

import (
	"os"
	"testing"
)

// SecretctlEnv lists every variable the configuration loader reads.
var SecretctlEnv = []string{
	"AZURE_KEYVAULT_URL",
	"AZURE_USER_ASSIGNED_IDENTITY",
	"AZURE_TENANT_ID",
	"SECRETCTL_VAULT_URL",
	"SECRETCTL_API_VERSION",
	"SECRETCTL_CREDENTIAL_CHAIN",
	"SECRETCTL_TENANT_ID",
	"SECRETCTL_TOKEN",
	"SECRETCTL_TRANSPORT",
	"SECRETCTL_CA_CERT",
	"SECRETCTL_METRICS_ADDR",
}

// SetupTestEnv sets environment variables for the duration of a test.
//
// The original environment is restored automatically when the test completes.
// Tests calling it cannot run in parallel.
//
// Example usage:
//
//	SetupTestEnv(t, map[string]string{
//	    "SECRETCTL_TOKEN":    "test-token",
//	    "AZURE_KEYVAULT_URL": srv.URL,
//	})
func SetupTestEnv(t *testing.T, vars map[string]string) {
	t.Helper()

	for key, value := range vars {
		t.Setenv(key, value)
	}
}

// ClearTestEnv unsets the given variables, or every SecretctlEnv variable
// when none are given, until the test completes. This keeps a developer's
// own AZURE_* settings from leaking into a test.
func ClearTestEnv(t *testing.T, keys ...string) {
	t.Helper()

	if len(keys) == 0 {
		keys = SecretctlEnv
	}
	for _, key := range keys {
		// Setenv registers the restore; the variable is then removed.
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("Failed to unset environment variable %s: %v", key, err)
		}
	}
}
