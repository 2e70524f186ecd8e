package editor

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// HostClient implements Host against the video platform REST API.
type HostClient struct {
	rest restClient
}

func NewHostClient(baseURL, token string) *HostClient {
	return &HostClient{rest: newRestClient(baseURL, token)}
}

func captionsPath(videoID string) string {
	return "/api/v1/videos/" + url.PathEscape(videoID) + "/captions"
}

type captionList struct {
	Data []struct {
		Language struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"language"`
		CaptionPath string `json:"captionPath"`
	} `json:"data"`
}

func (c *HostClient) ListCaptions(ctx context.Context, videoID string) ([]CaptionInfo, error) {
	req, err := c.rest.newRequest(ctx, http.MethodGet, captionsPath(videoID), nil)
	if err != nil {
		return nil, err
	}
	var list captionList
	if err := c.rest.do(req, &list); err != nil {
		return nil, err
	}
	captions := make([]CaptionInfo, 0, len(list.Data))
	for _, d := range list.Data {
		captions = append(captions, CaptionInfo{
			LanguageID:  d.Language.ID,
			Label:       d.Language.Label,
			CaptionPath: d.CaptionPath,
		})
	}
	return captions, nil
}

// FetchCaption downloads a caption file by the path the listing reported.
func (c *HostClient) FetchCaption(ctx context.Context, captionPath string) (string, error) {
	if !strings.HasPrefix(captionPath, "/") {
		captionPath = "/" + captionPath
	}
	req, err := c.rest.newRequest(ctx, http.MethodGet, captionPath, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/vtt, */*")
	raw, err := c.rest.send(req)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// UploadCaption replaces the caption of languageID with body, sent as
// multipart field "captionfile".
func (c *HostClient) UploadCaption(ctx context.Context, videoID, languageID, fileName, body string) error {
	req, err := c.rest.multipartRequest(ctx, http.MethodPut,
		captionsPath(videoID)+"/"+url.PathEscape(languageID), "captionfile", fileName, body)
	if err != nil {
		return err
	}
	return c.rest.do(req, nil)
}

func (c *HostClient) DeleteCaption(ctx context.Context, videoID, languageID string) error {
	req, err := c.rest.newRequest(ctx, http.MethodDelete, captionsPath(videoID)+"/"+url.PathEscape(languageID), nil)
	if err != nil {
		return err
	}
	return c.rest.do(req, nil)
}

// Languages maps language ids to display labels.
func (c *HostClient) Languages(ctx context.Context) (map[string]string, error) {
	req, err := c.rest.newRequest(ctx, http.MethodGet, "/api/v1/videos/languages", nil)
	if err != nil {
		return nil, err
	}
	languages := map[string]string{}
	err = c.rest.do(req, &languages)
	return languages, err
}
