package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
)

const (
	driveAPIPath = "/api/owner/v1/drive"
	// AuthCookieName carries the owner token on every request.
	AuthCookieName = "BX0900"
)

type HTTPConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// HTTPClient implements Client against the identity server owner API.
type HTTPClient struct {
	base   *url.URL
	token  string
	client *http.Client
}

func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote url is required")
	}

	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse remote url: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HTTPClient{
		base:   base,
		token:  cfg.Token,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type queryRequest struct {
	QueryParams          queryParamsRequest `json:"queryParams"`
	ResultOptionsRequest any                `json:"resultOptionsRequest"`
}

type queryParamsRequest struct {
	TargetDrive TargetDrive `json:"targetDrive"`
	QueryParams
}

type headerQuery struct {
	Alias  string `url:"alias"`
	Type   string `url:"type"`
	FileID string `url:"fileId"`
}

type uploadRequest struct {
	TargetDrive TargetDrive `json:"targetDrive"`
	UploadRequest
}

func (c *HTTPClient) QueryBatch(ctx context.Context, drive TargetDrive, params QueryParams, opts BatchOptions) (*BatchResult, error) {
	var result BatchResult
	req := queryRequest{
		QueryParams:          queryParamsRequest{TargetDrive: drive, QueryParams: params},
		ResultOptionsRequest: opts,
	}

	if err := c.do(ctx, http.MethodPost, "/query/batch", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) QueryModified(ctx context.Context, drive TargetDrive, params QueryParams, opts ModifiedOptions) (*ModifiedResult, error) {
	var result ModifiedResult
	req := queryRequest{
		QueryParams:          queryParamsRequest{TargetDrive: drive, QueryParams: params},
		ResultOptionsRequest: opts,
	}

	if err := c.do(ctx, http.MethodPost, "/query/modified", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) GetFileHeader(ctx context.Context, drive TargetDrive, fileID string) (*FileHeader, error) {
	values, err := query.Values(headerQuery{
		Alias:  drive.Alias,
		Type:   drive.Type,
		FileID: fileID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode header query: %w", err)
	}

	var header FileHeader
	if err := c.do(ctx, http.MethodGet, "/files/header", values, nil, &header); err != nil {
		return nil, err
	}

	if !header.IsActive() {
		return nil, ErrNotFound
	}
	return &header, nil
}

func (c *HTTPClient) UploadHeader(ctx context.Context, drive TargetDrive, req UploadRequest) (*UploadResult, error) {
	var result UploadResult
	body := uploadRequest{TargetDrive: drive, UploadRequest: req}

	if err := c.do(ctx, http.MethodPost, "/files/update", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, values url.Values, body, out any) error {
	endpoint := *c.base
	endpoint.Path = endpoint.Path + driveAPIPath + path
	if values != nil {
		endpoint.RawQuery = values.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: c.token})
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s %s: %w", method, path, ErrVersionConflict)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s %s: %w", method, path, err)
	}
	return nil
}
