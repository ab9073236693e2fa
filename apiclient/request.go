package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Params are query parameters. Slices encode as repeated keys and nil values
// are dropped. See EncodeQuery.
type Params map[string]any

// Request is a call to the remote API, relative to the executor's base URL.
type Request struct {
	Method string
	Path   string
	Params Params

	// Body is JSON encoded when non-nil
	Body   any
	Header http.Header

	// Provides tags a cacheable GET. Invalidates evicts cached responses with
	// any of the tags once this request succeeds.
	Provides    []string
	Invalidates []string
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Cached is set when the response came from the response cache
	Cached bool
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns an *APIError for non-2xx responses.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &APIError{StatusCode: r.StatusCode, Body: r.Body}
}

// DecodeJSON unmarshals the body into v. An empty body leaves v untouched.
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("[apiclient DecodeJSON] %w", err)
	}
	return nil
}

func (r *Response) clone() *Response {
	c := *r
	c.Header = r.Header.Clone()
	c.Body = append([]byte(nil), r.Body...)
	return &c
}

// APIError is a non-2xx response from the remote API.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

const maxMessageRunes = 200

// Message extracts a human readable message from the error body. The backend
// reports errors under "detail", "message" or "error".
func (e *APIError) Message() string {
	var body map[string]any
	if err := json.Unmarshal(e.Body, &body); err == nil {
		for _, k := range []string{"detail", "message", "error"} {
			if s, ok := body[k].(string); ok && s != "" {
				return s
			}
		}
	}

	msg := strings.TrimSpace(string(e.Body))
	if r := []rune(msg); len(r) > maxMessageRunes {
		msg = string(r[:maxMessageRunes])
	}
	return msg
}
