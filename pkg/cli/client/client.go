// Package client is the HTTP client behind the aida CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

// APIPrefix is prepended to every request path.
const APIPrefix = "/api"

// Client talks to an aida server.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a Client for baseURL authenticating with token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Do sends a JSON request. A nil body sends no payload.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	var (
		rdr         io.Reader
		contentType string
	)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		rdr = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, query, rdr, contentType, c.HTTPClient)
}

// UploadForm describes a multipart upload. Fields are written before the
// file part because the server reads them first.
type UploadForm struct {
	FileType  string
	ProjectID string
	FileName  string
	MediaType string
	Body      io.Reader
}

// Upload streams form to POST /upload. The request has no overall timeout;
// ctx bounds it.
func (c *Client) Upload(ctx context.Context, form UploadForm) (*http.Response, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, form))
	}()

	hc := *c.HTTPClient
	hc.Timeout = 0
	resp, err := c.send(ctx, http.MethodPost, "/upload", nil, pr, mw.FormDataContentType(), &hc)
	if err != nil {
		_ = pr.CloseWithError(err)
		return nil, err
	}
	return resp, nil
}

func writeUploadForm(mw *multipart.Writer, form UploadForm) error {
	if err := mw.WriteField("fileType", form.FileType); err != nil {
		return err
	}
	if err := mw.WriteField("projectId", form.ProjectID); err != nil {
		return err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, form.FileName))
	h.Set("Content-Type", form.MediaType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, form.Body); err != nil {
		return fmt.Errorf("read %s: %w", form.FileName, err)
	}
	return mw.Close()
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, hc *http.Client) (*http.Response, error) {
	u := c.BaseURL + APIPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// FieldError is one entry of a validation failure.
type FieldError struct {
	Param string `json:"param"`
	Msg   string `json:"msg"`
}

// APIError is a non-2xx response.
type APIError struct {
	HTTPStatus int          `json:"-"`
	Code       int          `json:"code"`
	Kind       string       `json:"kind"`
	Message    string       `json:"message"`
	Errors     []FieldError `json:"errors,omitempty"`
	raw        string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (HTTP %d): %s", e.HTTPStatus, e.raw)
	}
	msg := fmt.Sprintf("API error (HTTP %d): %s", e.HTTPStatus, e.Message)
	for _, fe := range e.Errors {
		msg += fmt.Sprintf("\n  %s: %s", fe.Param, fe.Msg)
	}
	return msg
}

// CheckError returns an *APIError for a non-2xx response, consuming and
// closing its body. 2xx responses are left untouched.
func CheckError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := ReadBody(resp)
	apiErr := &APIError{HTTPStatus: resp.StatusCode, raw: string(data)}
	_ = json.Unmarshal(data, apiErr)
	return apiErr
}

// ReadBody reads and closes resp.Body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close() //nolint:errcheck
	return io.ReadAll(resp.Body)
}

// DecodeJSON checks resp for an error and decodes its body into out.
func DecodeJSON(resp *http.Response, out any) error {
	if err := CheckError(resp); err != nil {
		return err
	}
	data, err := ReadBody(resp)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
