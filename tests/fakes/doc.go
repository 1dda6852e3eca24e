// Package fakes provides test doubles for the secretclient transport,
// credential backends, and the secret store HTTP API.
//
// Fakes are manually implemented (not generated) to provide precise control
// over test behavior.
//
// Usage:
//
//	tr := fakes.NewScriptedTransport(
//	    fakes.Reply(http.StatusServiceUnavailable, ""),
//	    fakes.Reply(http.StatusOK, `{"value":"s3cret"}`),
//	)
//	p := pipeline.NewPipeline(tr, pipeline.NewRetryPolicy(opts, nil, nil))
//	// Send requests, then inspect tr.Requests()...
package fakes
