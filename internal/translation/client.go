package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/MimeLyc/subtitle-editor/internal/apperr"
)

// ServiceClient talks to the external machine translation service.
type ServiceClient interface {
	TranslateSRT(ctx context.Context, apiURL, srt, source, target string) (string, error)
	LanguagePairs(ctx context.Context, apiURL string) ([]LanguagePair, error)
}

// HTTPClient implements ServiceClient over HTTP.
type HTTPClient struct {
	httpClient *http.Client
}

// NewHTTPClient creates a client without a global timeout. Callers bound each
// request through its context, so runtime settings changes apply to the next call.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{},
	}
}

type translateResponse struct {
	TranslatedSRT string `json:"translated_srt"`
}

// TranslateSRT uploads srt as multipart field "file" to
// {apiURL}/translate_srt/{source}/{target} and returns the translated SRT.
func (c *HTTPClient) TranslateSRT(ctx context.Context, apiURL, srt, source, target string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "subtitles.srt")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.WriteString(part, srt); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart body: %w", err)
	}

	endpoint := joinURL(apiURL, "translate_srt", source, target)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp translateResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.TranslatedSRT) == "" {
		return "", apperr.New(apperr.ErrUpstream, "translation service returned an empty result").
			WithContext("endpoint", endpoint)
	}
	return resp.TranslatedSRT, nil
}

// LanguagePairs fetches {apiURL}/existing_language_pairs/cached.
func (c *HTTPClient) LanguagePairs(ctx context.Context, apiURL string) ([]LanguagePair, error) {
	endpoint := joinURL(apiURL, "existing_language_pairs", "cached")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var pairs []LanguagePair
	if err := c.do(req, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return apperr.Wrap(err, apperr.ErrUpstream, "request timed out").WithContext("endpoint", req.URL.String())
		}
		return apperr.Wrap(err, apperr.ErrUpstream, "failed to make request").WithContext("endpoint", req.URL.String())
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrUpstream, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Newf(apperr.ErrUpstream, "HTTP error! status: %d", resp.StatusCode).
			WithContext("endpoint", req.URL.String()).
			WithContext("body", truncate(string(responseBody), 200))
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return apperr.Wrap(err, apperr.ErrParse, "failed to parse response").WithContext("endpoint", req.URL.String())
	}
	return nil
}

func joinURL(base string, segments ...string) string {
	escaped := make([]string, 0, len(segments)+1)
	escaped = append(escaped, strings.TrimRight(base, "/"))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	return strings.Join(escaped, "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
