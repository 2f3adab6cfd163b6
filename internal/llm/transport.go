package llm

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// CapturingTransport is an http.RoundTripper that keeps the last
// request/response bodies so protocol errors can carry an excerpt. Thread-safe.
type CapturingTransport struct {
	Base http.RoundTripper

	mu           sync.RWMutex
	lastRequest  []byte
	lastResponse []byte
	lastStatus   int
	lastURL      string
}

// RoundTrip implements http.RoundTripper, capturing request and response bodies
func (t *CapturingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		reqBody, _ = io.ReadAll(req.Body)
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	t.mu.Lock()
	t.lastRequest = reqBody
	t.lastResponse = nil
	t.lastStatus = 0
	t.lastURL = req.URL.String()
	t.mu.Unlock()

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return resp, err
	}

	// Re-wrap so the caller can still read it
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	t.mu.Lock()
	t.lastResponse = respBody
	t.lastStatus = resp.StatusCode
	t.mu.Unlock()

	return resp, nil
}

// LastCapture returns the last captured request/response data
func (t *CapturingTransport) LastCapture() (reqBody, respBody []byte, status int, url string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastRequest, t.lastResponse, t.lastStatus, t.lastURL
}
