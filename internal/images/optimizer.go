package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultOptimizerTimeout = 30 * time.Second

// OptimizerClient calls an external endpoint that recompresses an image
// posted as multipart form data and returns the optimized binary body.
type OptimizerClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewOptimizerClient constructs a client for the optimization endpoint.
func NewOptimizerClient(endpoint string, httpClient *http.Client) (*OptimizerClient, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("images: optimizer endpoint is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultOptimizerTimeout}
	}
	return &OptimizerClient{endpoint: endpoint, httpClient: httpClient}, nil
}

// Optimize posts the file and returns the optimized bytes. Any non-success
// status is an error; callers fall back to the original bytes.
func (c *OptimizerClient) Optimize(ctx context.Context, filename string, data []byte) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("images: optimizer returned status %d", response.StatusCode)
	}
	return io.ReadAll(response.Body)
}
