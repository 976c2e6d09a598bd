package models

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
)

// Request describes a pending outbound call. It is treated as immutable once
// built: decoration and retry marking return copies, so a replay never
// observes headers written for an earlier attempt.
type Request struct {
	ID     string
	Method string
	Target string
	Header http.Header
	Body   []byte

	retried bool
}

func NewRequest(method, target string, body []byte) *Request {
	return &Request{
		ID:     uuid.NewString(),
		Method: method,
		Target: target,
		Header: make(http.Header),
		Body:   body,
	}
}

// Retried reports whether this descriptor is the replay issued after a refresh.
func (r *Request) Retried() bool {
	return r.retried
}

func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	if r.Body != nil {
		c.Body = bytes.Clone(r.Body)
	}
	return &c
}

func (r *Request) WithHeader(key, value string) *Request {
	c := r.Clone()
	c.Header.Set(key, value)
	return c
}

func (r *Request) WithoutHeader(key string) *Request {
	if r.Header.Get(key) == "" {
		return r
	}
	c := r.Clone()
	c.Header.Del(key)
	return c
}

// MarkRetried returns the replay copy. The original keeps retried == false.
func (r *Request) MarkRetried() *Request {
	c := r.Clone()
	c.retried = true
	return c
}

func (r *Request) Build(ctx context.Context) (*http.Request, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.Target, body)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", r.Method, r.Target, err)
	}
	req.Header = r.Header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if r.ID != "" {
		req.Header.Set(RequestIDHeader, r.ID)
	}

	return req, nil
}
