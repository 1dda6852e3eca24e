package config

import (
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/systmms/secretclient/internal/logging"
	scerrors "github.com/systmms/secretclient/pkg/errors"
)

// EnvPrefix namespaces the overrides, e.g. SECRETCTL_VAULT_URL.
const EnvPrefix = "SECRETCTL"

// Env holds the SECRETCTL_* overrides.
type Env struct {
	VaultURL        string   `split_words:"true"`
	APIVersion      string   `split_words:"true"`
	CredentialChain []string `split_words:"true"`
	TenantID        string   `split_words:"true"`
	Token           string
	Transport       string
	CACert          string `split_words:"true"`
	MetricsAddr     string `split_words:"true"`
}

// azureEnv holds the variables shared with the Azure tooling.
type azureEnv struct {
	KeyVaultURL          string `envconfig:"AZURE_KEYVAULT_URL"`
	UserAssignedIdentity string `envconfig:"AZURE_USER_ASSIGNED_IDENTITY"`
	TenantID             string `envconfig:"AZURE_TENANT_ID"`
}

// applyEnv layers environment variables over the file. SECRETCTL_* wins
// over the AZURE_* equivalents.
func (d *Definition) applyEnv() error {
	var az azureEnv
	if err := envconfig.Process("", &az); err != nil {
		return scerrors.ConfigurationError{Message: err.Error()}
	}
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return scerrors.ConfigurationError{
			Message:    err.Error(),
			Suggestion: "Check the SECRETCTL_* environment variables",
		}
	}

	d.Vault.URL = firstNonEmpty(env.VaultURL, az.KeyVaultURL, d.Vault.URL)
	d.Vault.APIVersion = firstNonEmpty(env.APIVersion, d.Vault.APIVersion)
	d.Credential.TenantID = firstNonEmpty(env.TenantID, az.TenantID, d.Credential.TenantID)
	d.Transport.Type = firstNonEmpty(env.Transport, d.Transport.Type)
	d.Transport.CACert = firstNonEmpty(env.CACert, d.Transport.CACert)
	d.Metrics.Address = firstNonEmpty(env.MetricsAddr, d.Metrics.Address)

	if env.Token != "" {
		d.token = logging.Secret(env.Token)
	}

	if az.UserAssignedIdentity != "" && !d.Credential.ManagedIdentity.hasSelector() {
		if strings.HasPrefix(strings.ToLower(az.UserAssignedIdentity), "/subscriptions/") {
			d.Credential.ManagedIdentity.ResourceID = az.UserAssignedIdentity
		} else {
			d.Credential.ManagedIdentity.ClientID = az.UserAssignedIdentity
		}
	}

	if len(env.CredentialChain) > 0 {
		for _, name := range env.CredentialChain {
			if !slices.Contains(knownSources, name) {
				return scerrors.ConfigurationError{
					Field:      "credential.chain",
					Value:      name,
					Message:    "unknown credential source",
					Suggestion: "Use one of: " + strings.Join(knownSources, ", "),
				}
			}
		}
		d.Credential.Chain = env.CredentialChain
	}

	return nil
}

var knownSources = []string{SourceStatic, SourceCLI, SourceDevCLI, SourceManagedIdentity}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
