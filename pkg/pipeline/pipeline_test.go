package pipeline_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/secretclient/pkg/credential"
	scerrors "github.com/systmms/secretclient/pkg/errors"
	"github.com/systmms/secretclient/pkg/pipeline"
	"github.com/systmms/secretclient/pkg/transport"
	"github.com/systmms/secretclient/tests/fakes"
	"github.com/systmms/secretclient/tests/testutil"
)

const scope = "https://vault.azure.net/.default"

func staticCred(t *testing.T, value string) credential.Provider {
	t.Helper()
	p, err := credential.NewStaticToken(value, time.Time{})
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPipeline_RunsPoliciesInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) pipeline.Policy {
		return pipeline.PolicyFunc(func(req *transport.Request, next pipeline.Handler) (*transport.Response, error) {
			order = append(order, name+">")
			resp, err := next.Do(req)
			order = append(order, "<"+name)
			return resp, err
		})
	}

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, ""))
	p := pipeline.NewPipeline(tr, mark("a"), mark("b"))

	_, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, []string{"a>", "b>", "<b", "<a"}, order)
	assert.Len(t, p.Policies(), 2)
}

func TestPipeline_DoesNotMutateCallerRequest(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, ""))
	p, err := pipeline.New(pipeline.ClientOptions{Transport: tr, APIVersion: "7.5"}, staticCred(t, "tok"), scope)
	require.NoError(t, err)

	req := newRequest(t, http.MethodGet)
	_, err = p.Do(context.Background(), req)
	require.NoError(t, err)

	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, req.URL.Query().Get("api-version"))
}

func TestPipeline_PolicyCanShortCircuit(t *testing.T) {
	t.Parallel()

	want := errors.New("blocked")
	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, ""))
	p := pipeline.NewPipeline(tr, pipeline.PolicyFunc(func(*transport.Request, pipeline.Handler) (*transport.Response, error) {
		return nil, want
	}))

	_, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	assert.ErrorIs(t, err, want)
	assert.Zero(t, tr.Calls())
}

func TestAuthPolicy_SetsBearerToken(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, "body"))
	p := pipeline.NewPipeline(tr, pipeline.NewAuthPolicy(staticCred(t, "tok-123"), []string{scope}, false))

	resp, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, "body", string(resp.Body))

	reqs := tr.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer tok-123", reqs[0].Header.Get("Authorization"))
}

func TestAuthPolicy_RefusesPlainHTTP(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, ""))
	p := pipeline.NewPipeline(tr, pipeline.NewAuthPolicy(staticCred(t, "tok"), []string{scope}, false))

	req, err := transport.NewRequest(http.MethodGet, "http://vault.example.test/secrets")
	require.NoError(t, err)

	_, err = p.Do(context.Background(), req)
	var cfgErr scerrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, tr.Calls())

	allowed := pipeline.NewPipeline(tr, pipeline.NewAuthPolicy(staticCred(t, "tok"), []string{scope}, true))
	_, err = allowed.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Calls())
}

func TestAuthPolicy_PropagatesCredentialFailure(t *testing.T) {
	t.Parallel()

	acq := &fakes.CountingAcquirer{Err: errors.New("az login required")}
	cli, err := credential.NewCLIToken(credential.WithAcquirer(acq))
	require.NoError(t, err)

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, ""))
	p := pipeline.NewPipeline(tr, pipeline.NewAuthPolicy(cli, []string{scope}, false))

	_, err = p.Do(context.Background(), newRequest(t, http.MethodGet))
	var authErr *scerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Zero(t, tr.Calls())
}

func TestNew_RetriesTransientAuthFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	acq := credential.AcquirerFunc(func(context.Context, []string, *credential.IdentitySelector) (credential.Token, error) {
		calls++
		if calls == 1 {
			return credential.Token{}, &scerrors.TransportError{Op: "dial", Err: errors.New("imds unreachable")}
		}
		return credential.Token{Value: "tok", ExpiresOn: time.Now().Add(time.Hour)}, nil
	})
	mi, err := credential.NewManagedIdentity(credential.ManagedIdentityOptions{}, credential.WithAcquirer(acq))
	require.NoError(t, err)

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, ""))
	sleeper := &recordingSleep{}
	p, err := pipeline.New(pipeline.ClientOptions{
		Transport: tr,
		Retry:     pipeline.RetryOptions{Sleep: sleeper.sleep},
	}, mi, scope)
	require.NoError(t, err)

	_, err = p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, tr.Calls())
}

func TestNew_StandardPolicies(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(
		fakes.Reply(http.StatusServiceUnavailable, ""),
		fakes.Reply(http.StatusOK, ""),
	)
	sleeper := &recordingSleep{}
	p, err := pipeline.New(pipeline.ClientOptions{
		Transport:  tr,
		APIVersion: "7.5",
		UserAgent:  "secretctl/test",
		Retry:      pipeline.RetryOptions{Sleep: sleeper.sleep},
		Metrics:    pipeline.NewMetrics(prometheus.NewRegistry()),
	}, staticCred(t, "tok"), scope)
	require.NoError(t, err)

	_, err = p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)

	reqs := tr.Requests()
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.Equal(t, "7.5", r.URL.Query().Get("api-version"))
		assert.Equal(t, "secretctl/test", r.Header.Get("User-Agent"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
	}
	id := reqs[0].Header.Get(pipeline.RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Equal(t, id, reqs[1].Header.Get(pipeline.RequestIDHeader), "request id is stable across retries")
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := pipeline.New(pipeline.ClientOptions{}, nil, scope)
	var cfgErr scerrors.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "credential", cfgErr.Field)

	_, err = pipeline.New(pipeline.ClientOptions{}, staticCred(t, "tok"))
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "scopes", cfgErr.Field)
}

func TestNew_PerCallAndPerRetryPolicies(t *testing.T) {
	t.Parallel()

	var perCall, perRetry int
	count := func(n *int) pipeline.Policy {
		return pipeline.PolicyFunc(func(req *transport.Request, next pipeline.Handler) (*transport.Response, error) {
			*n++
			return next.Do(req)
		})
	}

	tr := fakes.NewScriptedTransport(
		fakes.Reply(http.StatusServiceUnavailable, ""),
		fakes.Reply(http.StatusServiceUnavailable, ""),
		fakes.Reply(http.StatusOK, ""),
	)
	sleeper := &recordingSleep{}
	p, err := pipeline.New(pipeline.ClientOptions{
		Transport:        tr,
		Retry:            pipeline.RetryOptions{Sleep: sleeper.sleep},
		PerCallPolicies:  []pipeline.Policy{count(&perCall)},
		PerRetryPolicies: []pipeline.Policy{count(&perRetry)},
	}, staticCred(t, "tok"), scope)
	require.NoError(t, err)

	_, err = p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	assert.Equal(t, 1, perCall)
	assert.Equal(t, 3, perRetry)
}

func TestRequestIDPolicy_KeepsCallerID(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, ""))
	p := pipeline.NewPipeline(tr, pipeline.RequestIDPolicy{})

	req := newRequest(t, http.MethodGet)
	req.Header.Set(pipeline.RequestIDHeader, "caller-id")
	_, err := p.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "caller-id", tr.Requests()[0].Header.Get(pipeline.RequestIDHeader))
}

func TestAPIVersionPolicy_ReplacesCallerValue(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, ""))
	p := pipeline.NewPipeline(tr, pipeline.APIVersionPolicy{Version: "7.5"})

	req, err := transport.NewRequest(http.MethodGet, "https://vault.example.test/secrets?api-version=1.0&maxresults=5")
	require.NoError(t, err)
	_, err = p.Do(context.Background(), req)
	require.NoError(t, err)

	q := tr.Requests()[0].URL.Query()
	assert.Equal(t, []string{"7.5"}, q["api-version"])
	assert.Equal(t, "5", q.Get("maxresults"))
}

func TestHeaderPolicy_DoesNotOverrideRequestHeaders(t *testing.T) {
	t.Parallel()

	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, ""))
	p := pipeline.NewPipeline(tr, pipeline.HeaderPolicy{Header: http.Header{
		"User-Agent": {"default"},
		"X-Extra":    {"1"},
	}})

	req := newRequest(t, http.MethodGet)
	req.Header.Set("User-Agent", "custom")
	_, err := p.Do(context.Background(), req)
	require.NoError(t, err)

	sent := tr.Requests()[0]
	assert.Equal(t, "custom", sent.Header.Get("User-Agent"))
	assert.Equal(t, "1", sent.Header.Get("X-Extra"))
}

func TestLoggingPolicy_RedactsAuthorization(t *testing.T) {
	t.Parallel()

	logs := testutil.NewTestLoggerWithDebug(t, true)
	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, "{}"))
	p := pipeline.NewPipeline(tr,
		pipeline.NewAuthPolicy(staticCred(t, "very-secret-token"), []string{scope}, false),
		pipeline.NewLoggingPolicy(logs.Logger()),
	)

	_, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)

	logs.AssertContains(t, "GET https://vault.example.test/secrets/db")
	logs.AssertContains(t, "200")
	logs.AssertNotContains(t, "very-secret-token")
	logs.AssertContains(t, "[REDACTED]")
}

func TestLoggingPolicy_RedactsQueryCredentials(t *testing.T) {
	t.Parallel()

	logs := testutil.NewTestLoggerWithDebug(t, true)
	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, "{}"))
	p := pipeline.NewPipeline(tr, pipeline.NewLoggingPolicy(logs.Logger()))

	req, err := transport.NewRequest(http.MethodGet, "https://vault.example.test/secrets?sig=query-signature-value&maxresults=5")
	require.NoError(t, err)
	_, err = p.Do(context.Background(), req)
	require.NoError(t, err)

	logs.AssertRedacted(t, "query-signature-value")
	logs.AssertContains(t, "maxresults=5")
}

func TestLoggingPolicy_SilentWithoutDebug(t *testing.T) {
	t.Parallel()

	logs := testutil.NewTestLogger(t)
	tr := fakes.NewScriptedTransport(fakes.Reply(http.StatusOK, "{}"))
	p := pipeline.NewPipeline(tr, pipeline.NewLoggingPolicy(logs.Logger()))

	_, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.NoError(t, err)
	assert.Empty(t, logs.GetOutput())
	assert.Equal(t, 1, tr.Calls())
}

func TestLoggingPolicy_LogsFailures(t *testing.T) {
	t.Parallel()

	logs := testutil.NewTestLoggerWithDebug(t, true)
	tr := fakes.NewScriptedTransport(fakes.Fail(&scerrors.TransportError{Op: "dial", Err: errors.New("refused")}))
	p := pipeline.NewPipeline(tr, pipeline.NewLoggingPolicy(logs.Logger()))

	_, err := p.Do(context.Background(), newRequest(t, http.MethodGet))
	require.Error(t, err)
	assert.True(t, strings.Contains(logs.GetOutput(), "failed after"))
}
