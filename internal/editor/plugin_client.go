package editor

import (
	"context"
	"net/http"
	"net/url"

	"github.com/MimeLyc/subtitle-editor/internal/editlock"
	"github.com/MimeLyc/subtitle-editor/internal/translation"
)

// DefaultPluginPath is where the editor server routes are mounted on the host.
const DefaultPluginPath = "/plugins/subtitle-translator/router"

// PluginClient implements PluginAPI over HTTP with a Bearer token.
type PluginClient struct {
	rest restClient
}

// NewPluginClient targets baseURL, which includes the plugin mount path.
func NewPluginClient(baseURL, token string) *PluginClient {
	return &PluginClient{rest: newRestClient(baseURL, token)}
}

func videoQuery(path, videoID string) string {
	return path + "?id=" + url.QueryEscape(videoID)
}

func (c *PluginClient) GetLock(ctx context.Context, videoID string) (editlock.Lock, error) {
	var lock editlock.Lock
	req, err := c.rest.newRequest(ctx, http.MethodGet, videoQuery("/lock", videoID), nil)
	if err != nil {
		return lock, err
	}
	err = c.rest.do(req, &lock)
	return lock, err
}

func (c *PluginClient) PutLock(ctx context.Context, videoID string, locked bool) (editlock.Lock, error) {
	var lock editlock.Lock
	req, err := c.rest.jsonRequest(ctx, http.MethodPut, videoQuery("/lock", videoID), map[string]bool{"locked": locked})
	if err != nil {
		return lock, err
	}
	err = c.rest.do(req, &lock)
	return lock, err
}

func (c *PluginClient) CheckStatus(ctx context.Context, videoID string) (translation.StatusResult, error) {
	var status translation.StatusResult
	req, err := c.rest.newRequest(ctx, http.MethodGet, videoQuery("/check-caption-data", videoID), nil)
	if err != nil {
		return status, err
	}
	err = c.rest.do(req, &status)
	return status, err
}

type translateRequest struct {
	OriginalLanguage string `json:"originalLanguage"`
	TargetLanguage   string `json:"targetLanguage"`
	Captions         string `json:"captions"`
}

// RequestTranslation returns the server's status line, e.g. "Translation pending".
func (c *PluginClient) RequestTranslation(ctx context.Context, videoID, originalLanguage, targetLanguage, captions string) (string, error) {
	req, err := c.rest.jsonRequest(ctx, http.MethodPost, videoQuery("/translate", videoID), translateRequest{
		OriginalLanguage: originalLanguage,
		TargetLanguage:   targetLanguage,
		Captions:         captions,
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.rest.do(req, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *PluginClient) Consume(ctx context.Context, videoID string) (bool, error) {
	req, err := c.rest.newRequest(ctx, http.MethodPost, videoQuery("/consume-caption-data", videoID), nil)
	if err != nil {
		return false, err
	}
	var resp struct {
		Consumed bool `json:"consumed"`
	}
	if err := c.rest.do(req, &resp); err != nil {
		return false, err
	}
	return resp.Consumed, nil
}

func (c *PluginClient) AvailablePairs(ctx context.Context) ([]translation.LanguagePair, error) {
	req, err := c.rest.newRequest(ctx, http.MethodGet, "/available-pairs", nil)
	if err != nil {
		return nil, err
	}
	var pairs []translation.LanguagePair
	err = c.rest.do(req, &pairs)
	return pairs, err
}
