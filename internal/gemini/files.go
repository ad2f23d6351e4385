package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"interview-analyzer/internal/metrics"
)

const maxErrorBody = 64 << 10

// upload sends the file through a resumable upload session and returns the
// created file resource. Not retried: a failed session is not resumable
// without re-reading state the server may not have kept.
func (c *Client) upload(ctx context.Context, path string) (providerFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return providerFile{}, &UploadError{Op: "start", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return providerFile{}, &UploadError{Op: "start", Err: err}
	}
	mimeType := mimeTypeFor(path)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	sessionURL, err := c.startUpload(ctx, info.Size(), mimeType)
	metrics.RemoteRequestsTotal.WithLabelValues("upload_start", metrics.Outcome(err)).Inc()
	if err != nil {
		return providerFile{}, &UploadError{Op: "start", Err: err}
	}

	file, err := c.sendUpload(ctx, sessionURL, f, info.Size())
	metrics.RemoteRequestsTotal.WithLabelValues("upload", metrics.Outcome(err)).Inc()
	if err != nil {
		return providerFile{}, &UploadError{Op: "upload", Err: err}
	}

	c.logger.Debug("file uploaded",
		zap.String("name", file.Name),
		zap.String("state", file.State),
		zap.Int64("size_bytes", info.Size()),
		zap.String("mime_type", mimeType),
	)
	return file, nil
}

func (c *Client) startUpload(ctx context.Context, size int64, mimeType string) (string, error) {
	body, err := json.Marshal(providerUploadStart{
		File: providerFileMeta{DisplayName: "interview-" + uuid.NewString()},
	})
	if err != nil {
		return "", fmt.Errorf("marshal upload start: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/upload/v1beta/files", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build upload start request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apiErrorFrom(resp)
	}
	sessionURL := resp.Header.Get("X-Goog-Upload-URL")
	if sessionURL == "" {
		return "", errors.New("upload session URL missing from response")
	}
	return sessionURL, nil
}

func (c *Client) sendUpload(ctx context.Context, sessionURL string, body io.Reader, size int64) (providerFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionURL, body)
	if err != nil {
		return providerFile{}, fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = size
	c.authorize(req)
	req.Header.Set("X-Goog-Upload-Offset", "0")
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providerFile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return providerFile{}, apiErrorFrom(resp)
	}

	var out providerUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return providerFile{}, fmt.Errorf("decode upload response: %w", err)
	}
	if out.File.Name == "" || out.File.URI == "" {
		return providerFile{}, errors.New("upload response missing file name or uri")
	}
	if out.File.MimeType == "" {
		out.File.MimeType = req.Header.Get("X-Goog-Upload-Header-Content-Type")
	}
	return out.File, nil
}

// getFile reads the current file resource, retrying transient failures.
func (c *Client) getFile(ctx context.Context, name string) (providerFile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	url := c.cfg.BaseURL + "/v1beta/" + name
	resp, err := c.retryGet(ctx, "status", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build status request: %w", err)
		}
		c.authorize(req)
		return req, nil
	})
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues("status", "error").Inc()
		return providerFile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RemoteRequestsTotal.WithLabelValues("status", "error").Inc()
		return providerFile{}, apiErrorFrom(resp)
	}

	var file providerFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues("status", "error").Inc()
		return providerFile{}, fmt.Errorf("decode file status: %w", err)
	}
	metrics.RemoteRequestsTotal.WithLabelValues("status", "ok").Inc()
	return file, nil
}

// deleteFile removes the remote file. It runs on a context detached from
// the caller's cancellation so cleanup still happens after a failed request.
func (c *Client) deleteFile(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.DeleteTimeout)
	defer cancel()

	err := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.BaseURL+"/v1beta/"+name, nil)
		if err != nil {
			return err
		}
		c.authorize(req)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return apiErrorFrom(resp)
		}
		return nil
	}()

	metrics.RemoteRequestsTotal.WithLabelValues("delete", metrics.Outcome(err)).Inc()
	if err != nil {
		c.logger.Warn("remote file cleanup failed",
			zap.String("name", name),
			zap.Error(err),
		)
	}
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
}

func apiErrorFrom(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var perr providerErrorResponse
	if err := json.Unmarshal(body, &perr); err == nil && perr.Error.Message != "" {
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     perr.Error.Status,
			Message:    perr.Error.Message,
		}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    truncate(strings.TrimSpace(string(body)), 200),
	}
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
	}
	return "application/octet-stream"
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
