package httpclient

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
)

// Request describes an outbound request.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	// Form is sent as application/x-www-form-urlencoded.
	Form url.Values
	Auth *AuthConfig
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// MediaType returns the response content type without parameters.
func (r *Response) MediaType() string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// DecodeJSON unmarshals the body into v. A decode failure is a bad response.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return NewBadResponseError(fmt.Errorf("decode JSON: %w", err))
	}
	return nil
}
