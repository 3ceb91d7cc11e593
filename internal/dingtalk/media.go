package dingtalk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MediaItem is the result of one successful media download.
type MediaItem struct {
	Kind        MessageKind
	Path        string // local storage path; persists beyond the request
	ContentType string
	FileName    string
	Size        int64
	Duration    int64 // milliseconds
}

// Fetcher resolves a download code to raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, id RobotIdentity, downloadCode string) ([]byte, error)
}

// Downloader resolves platform download codes to bytes via the two-step
// protocol: exchange the code for a time-boxed URL, then fetch it.
// Download codes are single-use, so nothing is cached.
type Downloader struct {
	client  *http.Client
	apiBase string
	tokens  *Tokens
}

// NewDownloader creates a Downloader using the given token cache.
func NewDownloader(tokens *Tokens) *Downloader {
	return &Downloader{
		client:  newHTTPClient(),
		apiBase: DefaultAPIBase,
		tokens:  tokens,
	}
}

// SetAPIBase overrides the vendor API origin (tests).
func (d *Downloader) SetAPIBase(base string) { d.apiBase = base }

// Fetch downloads the media behind downloadCode and returns its raw bytes.
// A failed URL exchange is a DownloadLinkError, a non-success fetch a
// TransferError; both are terminal for the current message.
func (d *Downloader) Fetch(ctx context.Context, id RobotIdentity, downloadCode string) ([]byte, error) {
	url, err := d.resolveURL(ctx, id, downloadCode)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransferError{Status: 0}
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &TransferError{Status: 0}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransferError{Status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// resolveURL exchanges the download code plus a fresh bearer token for a
// time-boxed direct URL.
func (d *Downloader) resolveURL(ctx context.Context, id RobotIdentity, downloadCode string) (string, error) {
	token, err := d.tokens.Get(ctx, id)
	if err != nil {
		return "", err
	}

	body, _ := json.Marshal(map[string]string{
		"downloadCode": downloadCode,
		"robotCode":    id.RobotCode,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.apiBase+"/v1.0/robot/messageFiles/download", bytes.NewReader(body))
	if err != nil {
		return "", &DownloadLinkError{Err: err}
	}
	req.Header.Set("x-acs-dingtalk-access-token", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", &DownloadLinkError{Err: err}
	}
	defer resp.Body.Close()

	var result struct {
		DownloadURL string `json:"downloadUrl"`
	}
	b, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(b, &result)
	if result.DownloadURL == "" {
		return "", &DownloadLinkError{Err: fmt.Errorf("no downloadUrl in response (status %d)", resp.StatusCode)}
	}
	return result.DownloadURL, nil
}

// saveMedia writes downloaded bytes under dir with a fresh name and returns
// the described media item. Size is the byte count actually written.
func saveMedia(dir string, kind MessageKind, data []byte, ext, fileName string, duration int64) (MediaItem, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return MediaItem{}, fmt.Errorf("create media dir: %w", err)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	path := filepath.Join(dir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return MediaItem{}, fmt.Errorf("write media file: %w", err)
	}
	return MediaItem{
		Kind:        kind,
		Path:        path,
		ContentType: contentTypeFor(ext, kind),
		FileName:    fileName,
		Size:        int64(len(data)),
		Duration:    duration,
	}, nil
}

func contentTypeFor(ext string, kind MessageKind) string {
	if ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	switch kind {
	case KindPicture:
		return "image/jpeg"
	case KindAudio:
		return "audio/amr"
	case KindVideo:
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
