package dingtalk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// DefaultOAPIBase is the legacy DingTalk open API origin, still required for
// media uploads.
const DefaultOAPIBase = "https://oapi.dingtalk.com"

// Uploader pushes local files to the legacy media endpoint and returns the
// media_id used by image sends.
type Uploader struct {
	client   *http.Client
	oapiBase string
	tokens   *Tokens
}

// NewUploader creates an Uploader using the given token cache.
func NewUploader(tokens *Tokens) *Uploader {
	return &Uploader{client: newHTTPClient(), oapiBase: DefaultOAPIBase, tokens: tokens}
}

// SetOAPIBase overrides the legacy API origin (tests).
func (u *Uploader) SetOAPIBase(base string) { u.oapiBase = base }

// UploadMedia uploads a local file as the given media type ("image", "voice",
// "video" or "file") and returns its media_id.
func (u *Uploader) UploadMedia(ctx context.Context, id RobotIdentity, mediaType, path string) (string, error) {
	token, err := u.tokens.Get(ctx, id)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("dingtalk: open media file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("dingtalk: build upload form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("dingtalk: read media file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("dingtalk: finish upload form: %w", err)
	}

	url := fmt.Sprintf("%s/media/upload?access_token=%s&type=%s", u.oapiBase, token, mediaType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("dingtalk: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("dingtalk: upload media: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
		MediaID string `json:"media_id"`
	}
	b, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(b, &result)
	if result.ErrCode != 0 {
		return "", fmt.Errorf("dingtalk: upload rejected: errcode=%d errmsg=%s", result.ErrCode, result.ErrMsg)
	}
	if result.MediaID == "" {
		return "", fmt.Errorf("dingtalk: upload returned no media_id (status %d)", resp.StatusCode)
	}
	return result.MediaID, nil
}
