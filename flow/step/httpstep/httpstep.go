// Package httpstep provides a StepFunc adapter that issues an HTTP request
// as a workflow step body, using the step's own timeout/cancellation as the
// request context so Retry and Timeout modifiers govern it the same way
// they govern any other step.
package httpstep

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sagaflow/sagaflow-go/flow"
)

// Request is what a step invocation sends.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Response is what came back.
type Response struct {
	StatusCode int
	Headers    map[string][]string
	Body       string
}

// BuildRequest derives the outgoing request from the current state.
type BuildRequest[S flow.State] func(state S) Request

// ApplyResponse folds a response back into state and decides whether the
// step advances. Returning false stops the flow without treating it as a
// failure; returning an error marks the step failed.
type ApplyResponse[S flow.State] func(state S, resp Response) (bool, error)

// Step adapts an *http.Client into a flow.StepFunc. A nil client uses
// http.DefaultClient.
func Step[S flow.State](client *http.Client, build BuildRequest[S], apply ApplyResponse[S]) flow.StepFunc[S] {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context, state S) (bool, error) {
		req := build(state)

		method := req.Method
		if method == "" {
			method = http.MethodGet
		}

		var body io.Reader
		if req.Body != "" {
			body = bytes.NewBufferString(req.Body)
		}

		httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
		if err != nil {
			return false, fmt.Errorf("build request: %w", err)
		}
		for key, value := range req.Headers {
			httpReq.Header.Set(key, value)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return false, fmt.Errorf("execute request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return false, fmt.Errorf("read response body: %w", err)
		}

		return apply(state, Response{
			StatusCode: resp.StatusCode,
			Headers:    map[string][]string(resp.Header),
			Body:       string(respBody),
		})
	}
}
