package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/config"
)

// Client uploads artifacts to a media-host HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	folder  string
	client  *http.Client
}

// NewClient creates a storage client from config.
func NewClient(cfg config.StorageConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, eris.New("storage: base_url is required")
	}
	folder := cfg.Folder
	if folder == "" {
		folder = "doubts"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.Key,
		folder:  folder,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Upload posts the artifact as a multipart form and returns the hosted
// asset. The configured folder is used when opts.Folder is empty.
func (c *Client) Upload(ctx context.Context, data []byte, opts UploadOptions) (*Asset, error) {
	if len(data) == 0 {
		return nil, eris.New("storage: empty upload")
	}
	folder := opts.Folder
	if folder == "" {
		folder = c.folder
	}
	resourceType := opts.ResourceType
	if resourceType == "" {
		resourceType = "image"
	}
	filename := opts.Filename
	if filename == "" {
		filename = "artifact"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, eris.Wrap(err, "storage: create form file")
	}
	if _, err := part.Write(data); err != nil {
		return nil, eris.Wrap(err, "storage: write form file")
	}
	if err := mw.WriteField("folder", folder); err != nil {
		return nil, eris.Wrap(err, "storage: write folder field")
	}
	if err := mw.WriteField("resource_type", resourceType); err != nil {
		return nil, eris.Wrap(err, "storage: write resource_type field")
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "storage: close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return nil, eris.Wrap(err, "storage: create upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "storage: upload call")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "storage: read upload response")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, eris.Errorf("storage: upload returned %d: %s", resp.StatusCode, string(body))
	}

	var uploaded struct {
		SecureURL string `json:"secure_url"`
		PublicID  string `json:"public_id"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Bytes     int64  `json:"bytes"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return nil, eris.Wrap(err, "storage: unmarshal upload response")
	}
	if uploaded.SecureURL == "" {
		return nil, eris.New("storage: upload response missing secure_url")
	}

	asset := &Asset{
		URL:      uploaded.SecureURL,
		PublicID: uploaded.PublicID,
		Width:    uploaded.Width,
		Height:   uploaded.Height,
		Bytes:    uploaded.Bytes,
	}
	if asset.Bytes == 0 {
		asset.Bytes = int64(len(data))
	}
	return asset, nil
}

// Delete removes a hosted asset by public id.
func (c *Client) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return eris.New("storage: public id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/assets/"+publicID, nil)
	if err != nil {
		return eris.Wrap(err, "storage: create delete request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "storage: delete call")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return eris.Errorf("storage: delete returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
