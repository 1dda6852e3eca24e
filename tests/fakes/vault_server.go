package fakes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// ContinuationParam is the query parameter the fake server reads tokens from.
const ContinuationParam = "continuationToken"

// SecretVersion is one stored version of a fake secret.
type SecretVersion struct {
	Version     string
	Value       string
	ContentType string
	Disabled    bool
	Tags        map[string]string
}

// RecordedRequest is what the fake server saw for one request.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

type scriptedFailure struct {
	status int
	code   string
}

// VaultServer is an in-memory secret store speaking the paged JSON protocol
// over TLS: GET /secrets, GET /secrets/{name}/versions and
// GET /secrets/{name}[/{version}].
type VaultServer struct {
	*httptest.Server

	// PageSize caps items per list page; defaults to 2.
	PageSize int
	// RequireToken, when set, rejects requests without this bearer token.
	RequireToken string

	mu       sync.Mutex
	secrets  map[string][]SecretVersion
	failures []scriptedFailure
	requests []RecordedRequest
}

// NewVaultServer starts a fake store that is closed when t finishes.
func NewVaultServer(t *testing.T) *VaultServer {
	t.Helper()

	v := &VaultServer{PageSize: 2, secrets: make(map[string][]SecretVersion)}
	v.Server = httptest.NewTLSServer(http.HandlerFunc(v.handle))
	t.Cleanup(v.Close)
	return v
}

// AddSecret stores versions of name; the last version is the current one.
func (v *VaultServer) AddSecret(name string, versions ...SecretVersion) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[name] = append(v.secrets[name], versions...)
}

// FailNext makes the next request fail with status and error code.
// Calls queue up in order.
func (v *VaultServer) FailNext(status int, code string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures = append(v.failures, scriptedFailure{status: status, code: code})
}

// Requests returns the requests received so far.
func (v *VaultServer) Requests() []RecordedRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]RecordedRequest(nil), v.requests...)
}

func (v *VaultServer) handle(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	v.requests = append(v.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	})
	var failure *scriptedFailure
	if len(v.failures) > 0 {
		f := v.failures[0]
		v.failures = v.failures[1:]
		failure = &f
	}
	v.mu.Unlock()

	if failure != nil {
		writeError(w, failure.status, failure.code, "scripted failure")
		return
	}
	if v.RequireToken != "" && r.Header.Get("Authorization") != "Bearer "+v.RequireToken {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid bearer token")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", r.Method+" is not supported")
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] == "secrets":
		v.listSecrets(w, r)
	case len(parts) == 3 && parts[0] == "secrets" && parts[2] == "versions":
		v.listVersions(w, r, parts[1])
	case len(parts) == 2 && parts[0] == "secrets":
		v.getSecret(w, parts[1], "")
	case len(parts) == 3 && parts[0] == "secrets":
		v.getSecret(w, parts[1], parts[2])
	default:
		writeError(w, http.StatusNotFound, "", "")
	}
}

func (v *VaultServer) listSecrets(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	names := make([]string, 0, len(v.secrets))
	for name := range v.secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	items := make([]map[string]any, 0, len(names))
	for _, name := range names {
		versions := v.secrets[name]
		items = append(items, v.properties(name, "", versions[len(versions)-1]))
	}
	v.mu.Unlock()

	v.writePage(w, r, items)
}

func (v *VaultServer) listVersions(w http.ResponseWriter, r *http.Request, name string) {
	v.mu.Lock()
	versions, ok := v.secrets[name]
	items := make([]map[string]any, 0, len(versions))
	for _, sv := range versions {
		items = append(items, v.properties(name, sv.Version, sv))
	}
	v.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "SecretNotFound", fmt.Sprintf("A secret with (name/id) %s was not found in this key vault", name))
		return
	}
	v.writePage(w, r, items)
}

func (v *VaultServer) getSecret(w http.ResponseWriter, name, version string) {
	v.mu.Lock()
	versions, ok := v.secrets[name]
	var found *SecretVersion
	if ok {
		if version == "" {
			found = &versions[len(versions)-1]
		} else {
			for i := range versions {
				if versions[i].Version == version {
					found = &versions[i]
				}
			}
		}
	}
	var bundle map[string]any
	if found != nil {
		bundle = v.properties(name, found.Version, *found)
		bundle["value"] = found.Value
	}
	v.mu.Unlock()

	if found == nil {
		writeError(w, http.StatusNotFound, "SecretNotFound", fmt.Sprintf("A secret with (name/id) %s/%s was not found in this key vault", name, version))
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (v *VaultServer) properties(name, version string, sv SecretVersion) map[string]any {
	id := v.URL + "/secrets/" + name
	if version != "" {
		id += "/" + version
	}
	props := map[string]any{
		"id":         id,
		"attributes": map[string]any{"enabled": !sv.Disabled, "created": 1767225600, "updated": 1767225600},
	}
	if sv.ContentType != "" {
		props["contentType"] = sv.ContentType
	}
	if len(sv.Tags) > 0 {
		props["tags"] = sv.Tags
	}
	return props
}

func (v *VaultServer) writePage(w http.ResponseWriter, r *http.Request, items []map[string]any) {
	size := v.PageSize
	if size <= 0 {
		size = 2
	}

	offset := 0
	if tok := r.URL.Query().Get(ContinuationParam); tok != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(tok, "offset-"))
		if err != nil || n < 0 || n > len(items) {
			writeError(w, http.StatusBadRequest, "BadParameter", "invalid continuation token")
			return
		}
		offset = n
	}

	end := min(offset+size, len(items))
	body := map[string]any{"items": items[offset:end]}
	if end < len(items) {
		body["nextToken"] = "offset-" + strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	if code != "" {
		w.Header().Set("x-ms-error-code", code)
	}
	if code == "" && message == "" {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, map[string]any{"error": map[string]any{"code": code, "message": message}})
}
