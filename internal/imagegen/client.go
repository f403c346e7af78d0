// Package imagegen calls an OpenAI-compatible image generation endpoint.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tower_bot/internal/config"
	"tower_bot/internal/logging"
	"tower_bot/internal/transport"
)

var ErrNoImage = errors.New("no image url in response")

type Client struct {
	cfg    config.OpenAIConfig
	http   *transport.Client
	logger logging.Logger
}

// NewClient expects a transport client built with the image timeout, which is
// longer than the one used for the other APIs.
func NewClient(cfg config.OpenAIConfig, httpClient *transport.Client, logger logging.Logger) *Client {
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

// Generate requests one image and returns its URL.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Prompt: prompt, N: 1, Size: c.cfg.Size})
	if err != nil {
		return "", err
	}

	var out struct {
		Data []struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	_, err = c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("api-key", c.cfg.Key)
		return req, nil
	}, &out)
	if err != nil {
		return "", fmt.Errorf("generate image: %w", err)
	}
	if len(out.Data) == 0 || strings.TrimSpace(out.Data[0].URL) == "" {
		return "", ErrNoImage
	}

	c.logger.WithField("prompt_chars", len(prompt)).Debug("Image generated")
	return out.Data[0].URL, nil
}
