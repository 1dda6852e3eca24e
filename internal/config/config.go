package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/systmms/secretclient/internal/logging"
	scerrors "github.com/systmms/secretclient/pkg/errors"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = "secretctl.yaml"

// DefaultEnvFile is loaded when present and no explicit env file is set.
const DefaultEnvFile = ".env"

// Credential source names accepted in credential.chain.
const (
	SourceStatic          = "static"
	SourceCLI             = "cli"
	SourceDevCLI          = "dev_cli"
	SourceManagedIdentity = "managed_identity"
)

// Transport names accepted in transport.type.
const (
	TransportHTTP  = "http"
	TransportResty = "resty"
)

//go:embed schema.json
var schema string

// Config holds the runtime configuration
type Config struct {
	Path string
	// EnvFile is a dotenv file to load before reading the environment.
	// When empty, DefaultEnvFile is loaded if it exists.
	EnvFile    string
	Logger     *logging.Logger
	Definition *Definition

	// Flag overrides, applied after the environment.
	Transport   string
	MetricsAddr string
}

// Definition represents the secretctl.yaml structure
type Definition struct {
	Version    int              `yaml:"version"`
	Vault      VaultConfig      `yaml:"vault"`
	Credential CredentialConfig `yaml:"credential"`
	Retry      RetryConfig      `yaml:"retry"`
	Transport  TransportConfig  `yaml:"transport"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	// token is only ever read from the environment.
	token logging.Secret
}

// VaultConfig locates the secret store
type VaultConfig struct {
	URL        string `yaml:"url"`
	APIVersion string `yaml:"api_version"`
	Scope      string `yaml:"scope"`
}

// CredentialConfig selects and orders the credential sources
type CredentialConfig struct {
	Chain            []string              `yaml:"chain"`
	TenantID         string                `yaml:"tenant_id"`
	RefreshTimeoutMs int                   `yaml:"refresh_timeout_ms"`
	ManagedIdentity  ManagedIdentityConfig `yaml:"managed_identity"`
}

// ManagedIdentityConfig holds at most one identity selector
type ManagedIdentityConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
	ClientID   string `yaml:"client_id"`
	ResourceID string `yaml:"resource_id"`
	ObjectID   string `yaml:"object_id"`
}

// RetryConfig tunes the retry policy; zero values keep the defaults
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	DelayMs     int `yaml:"delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms"`
}

// TransportConfig selects the HTTP stack
type TransportConfig struct {
	Type      string `yaml:"type"`
	TimeoutMs int    `yaml:"timeout_ms"`
	CACert    string `yaml:"ca_cert"`
	AllowHTTP bool   `yaml:"allow_http"`
}

// MetricsConfig exposes Prometheus metrics when Address is set
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Load reads the env file, secretctl.yaml, environment overrides and flag
// overrides, in that order of increasing precedence.
func (c *Config) Load() error {
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}

	if err := c.loadEnvFile(); err != nil {
		return err
	}

	def, err := c.readDefinition()
	if err != nil {
		return err
	}

	if err := def.applyEnv(); err != nil {
		return err
	}
	def.Transport.Type = firstNonEmpty(c.Transport, def.Transport.Type)
	def.Metrics.Address = firstNonEmpty(c.MetricsAddr, def.Metrics.Address)

	c.Definition = def
	return nil
}

func (c *Config) loadEnvFile() error {
	if c.EnvFile != "" {
		if err := godotenv.Load(c.EnvFile); err != nil {
			return scerrors.ConfigurationError{
				Field:      "env_file",
				Value:      c.EnvFile,
				Message:    fmt.Sprintf("failed to load env file: %v", err),
				Suggestion: "Check the path passed to --env-file",
			}
		}
		return nil
	}

	if _, err := os.Stat(DefaultEnvFile); err != nil {
		return nil
	}
	if err := godotenv.Load(DefaultEnvFile); err != nil {
		c.Logger.Warn("unable to load %s file: %v", DefaultEnvFile, err)
	}
	return nil
}

func (c *Config) readDefinition() (*Definition, error) {
	path := c.Path
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if path == DefaultPath {
				c.Logger.Debug("No %s found, using environment only", DefaultPath)
				return &Definition{}, nil
			}
			return nil, scerrors.ConfigurationError{
				Field:      "path",
				Value:      path,
				Message:    "configuration file not found",
				Suggestion: "Check the path passed to --config",
			}
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, scerrors.ConfigurationError{
			Message:    fmt.Sprintf("invalid YAML syntax in configuration file: %v", err),
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}
	if raw != nil {
		if err := Validate(raw); err != nil {
			return nil, scerrors.ConfigurationError{
				Field:      "path",
				Value:      path,
				Message:    err.Error(),
				Suggestion: "Compare the file against the documented secretctl.yaml keys",
			}
		}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, scerrors.ConfigurationError{
			Message: fmt.Sprintf("invalid configuration file: %v", err),
		}
	}
	c.Logger.Debug("Loaded configuration from %s", path)
	return &def, nil
}

// Validate checks a decoded document against the embedded schema.
func Validate(data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errorMessages []string
		for _, desc := range result.Errors() {
			errorMessages = append(errorMessages, desc.String())
		}
		return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}

	return nil
}
