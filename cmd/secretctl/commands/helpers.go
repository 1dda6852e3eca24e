package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/systmms/secretclient/internal/config"
	"github.com/systmms/secretclient/internal/logging"
	"github.com/systmms/secretclient/pkg/credential"
	"github.com/systmms/secretclient/pkg/pipeline"
	"github.com/systmms/secretclient/pkg/secretclient"
)

// session is everything a command needs to talk to the vault.
type session struct {
	client *secretclient.Client
	cred   credential.Provider
	scope  string
	stop   func()
}

// openSession loads the configuration and builds the client. Close must be
// called when the command is done.
func openSession(cfg *config.Config) (*session, error) {
	if err := cfg.Load(); err != nil {
		return nil, err
	}

	var metrics *pipeline.Metrics
	stop := func() {}
	if addr := cfg.Definition.Metrics.Address; addr != "" {
		reg := prometheus.NewRegistry()
		metrics = pipeline.NewMetrics(reg)
		srv, err := startMetricsServer(addr, reg, cfg.Logger)
		if err != nil {
			return nil, err
		}
		stop = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}
	}

	client, cred, err := cfg.NewClient(metrics)
	if err != nil {
		stop()
		return nil, err
	}

	scope := cfg.Definition.Vault.Scope
	if scope == "" {
		scope = secretclient.DefaultScope
	}
	return &session{client: client, cred: cred, scope: scope, stop: stop}, nil
}

func (s *session) Close() {
	s.stop()
}

// startMetricsServer serves /metrics from reg until shut down.
func startMetricsServer(addr string, reg *prometheus.Registry, logger *logging.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on metrics address %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server error: %v", err)
		}
	}()
	logger.Debug("Serving metrics on http://%s/metrics", ln.Addr())
	return srv, nil
}

// secretInfo is the JSON and table view of a secret or its properties.
type secretInfo struct {
	Name        string            `json:"name"`
	Version     string            `json:"version,omitempty"`
	Value       string            `json:"value,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	Enabled     *bool             `json:"enabled,omitempty"`
	Updated     *time.Time        `json:"updated,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

func describe(id *azsecrets.ID, attrs *azsecrets.SecretAttributes, contentType *string, tags map[string]*string) secretInfo {
	var info secretInfo
	if rid, ok := secretclient.IDOf(id); ok {
		info.Name = rid.Name
		info.Version = rid.Version
	}
	if contentType != nil {
		info.ContentType = *contentType
	}
	if attrs != nil {
		info.Enabled = attrs.Enabled
		info.Updated = attrs.Updated
	}
	if len(tags) > 0 {
		info.Tags = make(map[string]string, len(tags))
		for k, v := range tags {
			if v != nil {
				info.Tags[k] = *v
			}
		}
	}
	return info
}

func describeProperties(p *azsecrets.SecretProperties) secretInfo {
	return describe(p.ID, p.Attributes, p.ContentType, p.Tags)
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func formatEnabled(enabled *bool) string {
	if enabled == nil {
		return "-"
	}
	if *enabled {
		return "yes"
	}
	return "no"
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatTags renders tags as k=v pairs in key order.
func formatTags(tags map[string]string) string {
	if len(tags) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + tags[k]
	}
	return strings.Join(pairs, ",")
}
