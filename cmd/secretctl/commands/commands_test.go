package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/secretclient/internal/config"
	clierrors "github.com/systmms/secretclient/internal/errors"
	"github.com/systmms/secretclient/tests/fakes"
	"github.com/systmms/secretclient/tests/testutil"
)

const testToken = "cli-test-token"

type testEnv struct {
	srv    *fakes.VaultServer
	cfg    *config.Config
	logger *testutil.TestLogger
}

// setupVault starts a seeded vault and writes a config that reaches it with
// a token from the environment. configure may adjust the config; by default
// the chain holds only the static source.
func setupVault(t *testing.T, configure func(*testutil.TestConfigBuilder)) *testEnv {
	t.Helper()

	testutil.ClearTestEnv(t)
	testutil.SetupTestEnv(t, map[string]string{"SECRETCTL_TOKEN": testToken})

	srv := fakes.NewVaultServer(t)
	srv.RequireToken = testToken
	srv.AddSecret("api-key", fakes.SecretVersion{Version: "v1", Value: "k1", ContentType: "text/plain"})
	srv.AddSecret("db-password",
		fakes.SecretVersion{Version: "aaa", Value: "old"},
		fakes.SecretVersion{Version: "bbb", Value: "new", Tags: map[string]string{"env": "prod", "app": "api"}},
	)
	srv.AddSecret("tls-cert", fakes.SecretVersion{Version: "c1", Value: "pem", Disabled: true})

	builder := testutil.NewTestConfig(t).
		WithVault(srv.URL).
		WithChain("static").
		WithFastRetry().
		WithTrustedServer(srv.Server)
	if configure != nil {
		configure(builder)
	}

	logger := testutil.NewTestLoggerWithDebug(t, true)
	return &testEnv{
		srv:    srv,
		cfg:    &config.Config{Path: builder.Write(), Logger: logger.Logger()},
		logger: logger,
	}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	if args == nil {
		args = []string{}
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGetCommand_RawValue(t *testing.T) {
	env := setupVault(t, nil)

	output, err := execute(t, NewGetCommand(env.cfg), "db-password")
	require.NoError(t, err)
	assert.Equal(t, "new", output)

	output, err = execute(t, NewGetCommand(env.cfg), "db-password", "--version", "aaa")
	require.NoError(t, err)
	assert.Equal(t, "old", output)

	env.logger.AssertNotContains(t, testToken)
}

func TestGetCommand_JSONOutput(t *testing.T) {
	env := setupVault(t, nil)

	output, err := execute(t, NewGetCommand(env.cfg), "db-password", "--json")
	require.NoError(t, err)

	var info secretInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, "db-password", info.Name)
	assert.Equal(t, "bbb", info.Version)
	assert.Equal(t, "new", info.Value)
	assert.Equal(t, map[string]string{"env": "prod", "app": "api"}, info.Tags)
	require.NotNil(t, info.Enabled)
	assert.True(t, *info.Enabled)
}

func TestGetCommand_NotFound(t *testing.T) {
	env := setupVault(t, nil)

	_, err := execute(t, NewGetCommand(env.cfg), "missing")
	var userErr clierrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "Getting secret 'missing'")
	assert.Contains(t, userErr.Suggestion, "secretctl list")
}

func TestGetCommand_RequiresName(t *testing.T) {
	env := setupVault(t, nil)

	_, err := execute(t, NewGetCommand(env.cfg))
	assert.Error(t, err)
	assert.Empty(t, env.srv.Requests())
}

func TestGetCommand_ConfigErrorIsReturned(t *testing.T) {
	env := setupVault(t, nil)
	env.cfg.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := execute(t, NewGetCommand(env.cfg), "api-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestListCommand_Table(t *testing.T) {
	env := setupVault(t, nil)

	output, err := execute(t, NewListCommand(env.cfg))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "api-key")
	assert.Contains(t, lines[1], "text/plain")
	assert.Contains(t, lines[2], "db-password")
	assert.Contains(t, lines[2], "app=api,env=prod")
	assert.Contains(t, lines[3], "tls-cert")
	assert.Contains(t, lines[3], "no")
	assert.Contains(t, lines[1], "2026-01-01T00:00:00Z")

	// Three secrets at two per page.
	assert.Len(t, env.srv.Requests(), 2)
}

func TestListCommand_MaxStopsPaging(t *testing.T) {
	env := setupVault(t, nil)

	output, err := execute(t, NewListCommand(env.cfg), "--max", "2", "--json")
	require.NoError(t, err)

	var infos []secretInfo
	require.NoError(t, json.Unmarshal([]byte(output), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "api-key", infos[0].Name)
	assert.Empty(t, infos[0].Value)
	assert.Len(t, env.srv.Requests(), 1, "second page is never fetched")
}

func TestListCommand_RetriesThrottling(t *testing.T) {
	env := setupVault(t, nil)
	env.srv.FailNext(http.StatusTooManyRequests, "Throttled")

	output, err := execute(t, NewListCommand(env.cfg), "--json")
	require.NoError(t, err)

	var infos []secretInfo
	require.NoError(t, json.Unmarshal([]byte(output), &infos))
	assert.Len(t, infos, 3)
	assert.Len(t, env.srv.Requests(), 3)
}

func TestVersionsCommand(t *testing.T) {
	env := setupVault(t, nil)

	output, err := execute(t, NewVersionsCommand(env.cfg), "db-password")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "VERSION")
	assert.True(t, strings.HasPrefix(lines[1], "aaa"))
	assert.True(t, strings.HasPrefix(lines[2], "bbb"))

	_, err = execute(t, NewVersionsCommand(env.cfg), "missing")
	var userErr clierrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "Listing versions of 'missing'")
}

func TestTokenCommand_NeverPrintsToken(t *testing.T) {
	env := setupVault(t, nil)

	output, err := execute(t, NewTokenCommand(env.cfg), "--scope", "https://example.test/.default")
	require.NoError(t, err)

	assert.Contains(t, output, "Source:  StaticToken")
	assert.Contains(t, output, "Scope:   https://example.test/.default")
	assert.Contains(t, output, "Expires: unknown")
	assert.NotContains(t, output, testToken)
	env.logger.AssertNotContains(t, testToken)
}

func TestTokenCommand_ReportsSupplyingSource(t *testing.T) {
	imds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(imds.Close)

	env := setupVault(t, func(b *testutil.TestConfigBuilder) {
		b.WithChain("managed_identity", "static").
			WithManagedIdentity(imds.URL, "11111111-2222-3333-4444-555555555555")
	})

	output, err := execute(t, NewTokenCommand(env.cfg))
	require.NoError(t, err)
	assert.Contains(t, output, "Source:  StaticToken\n")
	assert.NotContains(t, output, "Chained(")
	assert.NotContains(t, output, testToken)
}

func TestDoctorCommand(t *testing.T) {
	imds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(imds.Close)

	env := setupVault(t, func(b *testutil.TestConfigBuilder) {
		b.WithChain("managed_identity", "static").
			WithManagedIdentity(imds.URL, "11111111-2222-3333-4444-555555555555")
	})

	output, err := execute(t, NewDoctorCommand(env.cfg), "--verbose")
	require.NoError(t, err)

	assert.Contains(t, output, "Chain:     managed_identity → static")
	assert.Regexp(t, `ManagedIdentity\s+✗ error`, output)
	assert.Regexp(t, `StaticToken\s+✓ healthy`, output)
	assert.Contains(t, output, "ManagedIdentity suggestions:")
	assert.Contains(t, output, "Summary: 1/2 credential sources healthy")
	assert.Contains(t, output, "Vault is reachable")
	env.logger.AssertContains(t, "All systems operational!")
}

func TestDoctorCommand_NoHealthySource(t *testing.T) {
	imds := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_request","error_description":"Identity not found"}`))
	}))
	t.Cleanup(imds.Close)

	env := setupVault(t, func(b *testutil.TestConfigBuilder) {
		b.WithChain("managed_identity").WithManagedIdentity(imds.URL, "")
	})

	output, err := execute(t, NewDoctorCommand(env.cfg))
	var userErr clierrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "No credential source is available", userErr.Message)
	assert.Contains(t, output, "Summary: 0/1 credential sources healthy")
	assert.Empty(t, env.srv.Requests())
}

func TestOpenSession_MetricsServer(t *testing.T) {
	env := setupVault(t, nil)
	env.cfg.MetricsAddr = "127.0.0.1:0"

	s, err := openSession(env.cfg)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.client.GetSecret(t.Context(), "api-key", "")
	require.NoError(t, err)
}

func TestFormatExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "unknown", formatExpiry(time.Time{}, now))
	assert.Equal(t, "2026-01-01T01:00:00Z (in 1h0m0s)", formatExpiry(now.Add(time.Hour), now))
	assert.Equal(t, "2025-12-31T23:00:00Z (expired)", formatExpiry(now.Add(-time.Hour), now))
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-", formatTags(nil))
	assert.Equal(t, "a=1,b=2", formatTags(map[string]string{"b": "2", "a": "1"}))
}
