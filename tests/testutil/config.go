// Package testutil provides test utilities and helpers for secretctl tests.
//
// This package contains shared test infrastructure including configuration
// builders, environment helpers, and logger capture.
package testutil

import (
	"encoding/pem"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestConfigBuilder provides a fluent API for building secretctl.yaml files.
//
// Only sections that were set are written, so the output always satisfies
// the configuration schema's minimums.
//
// Example usage:
//
//	path := NewTestConfig(t).
//	    WithVault(srv.URL).
//	    WithChain("static").
//	    WithTrustedServer(srv.Server).
//	    Write()
type TestConfigBuilder struct {
	doc     map[string]any
	tempDir string
	t       *testing.T
}

// NewTestConfig creates a builder holding only "version: 0".
func NewTestConfig(t *testing.T) *TestConfigBuilder {
	t.Helper()

	return &TestConfigBuilder{
		doc:     map[string]any{"version": 0},
		tempDir: t.TempDir(),
		t:       t,
	}
}

// WithVault sets vault.url.
func (b *TestConfigBuilder) WithVault(url string) *TestConfigBuilder {
	b.section("vault")["url"] = url
	return b
}

// WithChain sets credential.chain.
func (b *TestConfigBuilder) WithChain(sources ...string) *TestConfigBuilder {
	b.section("credential")["chain"] = sources
	return b
}

// WithManagedIdentity points the managed identity source at endpoint. An
// empty clientID configures a system-assigned identity.
func (b *TestConfigBuilder) WithManagedIdentity(endpoint, clientID string) *TestConfigBuilder {
	mi := map[string]any{"endpoint": endpoint}
	if clientID != "" {
		mi["client_id"] = clientID
	}
	b.section("credential")["managed_identity"] = mi
	return b
}

// WithFastRetry keeps retry delays in the millisecond range.
func (b *TestConfigBuilder) WithFastRetry() *TestConfigBuilder {
	retry := b.section("retry")
	retry["delay_ms"] = 1
	retry["max_delay_ms"] = 5
	return b
}

// WithTransport sets transport.type.
func (b *TestConfigBuilder) WithTransport(transportType string) *TestConfigBuilder {
	b.section("transport")["type"] = transportType
	return b
}

// WithTrustedServer writes the certificate of a TLS test server to a PEM
// file and sets it as transport.ca_cert.
func (b *TestConfigBuilder) WithTrustedServer(srv *httptest.Server) *TestConfigBuilder {
	b.t.Helper()

	path := filepath.Join(b.tempDir, "ca.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		b.t.Fatalf("Failed to write CA certificate: %v", err)
	}
	b.section("transport")["ca_cert"] = path
	return b
}

// Write writes the configuration to a temporary file and returns the path.
func (b *TestConfigBuilder) Write() string {
	b.t.Helper()

	data, err := yaml.Marshal(b.doc)
	if err != nil {
		b.t.Fatalf("Failed to marshal test config: %v", err)
	}
	return WriteTestConfig(b.t, string(data))
}

func (b *TestConfigBuilder) section(name string) map[string]any {
	s, ok := b.doc[name].(map[string]any)
	if !ok {
		s = map[string]any{}
		b.doc[name] = s
	}
	return s
}

// WriteTestConfig is a convenience function for writing a YAML string to a file.
//
// This is useful for tests that have hand-written YAML test cases.
// The file is created in a temporary directory and cleaned up automatically.
//
// Example:
//
//	path := WriteTestConfig(t, `
//	version: 0
//	vault:
//	  url: https://myvault.vault.azure.net
//	`)
func WriteTestConfig(t *testing.T, yamlContent string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "secretctl.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}
