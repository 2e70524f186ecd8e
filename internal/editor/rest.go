package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MimeLyc/subtitle-editor/internal/apperr"
)

const defaultRequestTimeout = 30 * time.Second

// restClient sends authenticated JSON requests relative to a base URL.
type restClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newRestClient(baseURL, token string) restClient {
	return restClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (c restClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c restClient) jsonRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	if in == nil {
		return c.newRequest(ctx, method, path, nil)
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c restClient) multipartRequest(ctx context.Context, method, path, field, fileName, content string) (*http.Request, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

// do sends req and decodes a JSON body into out. A nil out discards the body.
func (c restClient) do(req *http.Request, out any) error {
	raw, err := c.send(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(err, apperr.ErrParse, "failed to parse response").WithContext("endpoint", req.URL.Path)
	}
	return nil
}

func (c restClient) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, apperr.Wrap(err, apperr.ErrUpstream, "request timed out").WithContext("endpoint", req.URL.Path)
		}
		return nil, apperr.Wrap(err, apperr.ErrUpstream, "failed to make request").WithContext("endpoint", req.URL.Path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrUpstream, "failed to read response body")
	}

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, apperr.Newf(apperr.ErrAuthorization, "HTTP error! status: %d", resp.StatusCode).
			WithContext("endpoint", req.URL.Path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, apperr.Newf(apperr.ErrUpstream, "HTTP error! status: %d", resp.StatusCode).
			WithContext("endpoint", req.URL.Path)
	}
	return raw, nil
}
