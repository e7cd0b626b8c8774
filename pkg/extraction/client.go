package extraction

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/mediscanner/api/pkg/common/logger"
	"github.com/mediscanner/api/pkg/gateway/httpclient"
)

const maxResponseBytes = 4 << 20

// Client calls an OpenAI-compatible chat completions endpoint with one
// image per request.
type Client struct {
	cfg        Config
	httpClient *http.Client
	endpoint   string
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()

	base := httpclient.New(cfg.Timeout)
	hc := base
	if cfg.APIKey != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey}))
		hc.Timeout = cfg.Timeout
	} else {
		logger.Log.Warn("AI_API_KEY not set; model calls will be sent without credentials")
	}

	return &Client{
		cfg:        cfg,
		httpClient: hc,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// DataURI encodes image as a base64 data URI typed from filename.
func DataURI(image []byte, filename string) string {
	return "data:" + MIMEType(filename) + ";base64," + base64.StdEncoding.EncodeToString(image)
}

func (c *Client) buildRequest(image []byte, filename string) chatRequest {
	return chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: Prompt()},
				{Type: "image_url", ImageURL: &imageURL{URL: DataURI(image, filename)}},
			},
		}},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
}

// Extract sends image to the model and returns the text it produced. An
// error means the model could not be reached or refused the request; an
// unexpected response shape yields "" with a nil error.
func (c *Client) Extract(ctx context.Context, image []byte, filename string) (string, error) {
	payload, err := json.Marshal(c.buildRequest(image, filename))
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read model response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return "", &httpclient.StatusError{URL: c.endpoint, StatusCode: resp.StatusCode, Body: snippet}
	}

	text := ResponseText(body)
	if text == "" {
		logger.FromContext(ctx).WithFields(map[string]interface{}{
			"filename":      filename,
			"response_size": len(body),
		}).Warn("Model response contained no text")
	}
	return text, nil
}
