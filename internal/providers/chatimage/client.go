package chatimage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"imagebatch/internal/infra"
)

const defaultTimeout = 120 * time.Second

const (
	OpenRouterFlashModel = "google/gemini-2.0-flash-exp:free"
	OpenRouterProModel   = "google/gemini-2.5-pro-preview"
)

var (
	ErrMissingAPIKey = errors.New("chatimage: api key is required")
	ErrNoImage       = errors.New("chatimage: no image in response")
)

var imageURLPattern = regexp.MustCompile(`https?://[^\s"']+\.(?:png|jpg|jpeg|webp)`)

// Options configures a chat-completions endpoint that can answer with images.
type Options struct {
	Name       string
	APIKey     string
	BaseURL    string
	MaxTokens  int
	Headers    map[string]string
	ModelMap   func(model string) string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client talks to an OpenAI-compatible /chat/completions endpoint (NanoBanana,
// OpenRouter) and extracts the first image from the reply.
type Client struct {
	name      string
	apiKey    string
	baseURL   string
	maxTokens int
	headers   map[string]string
	modelMap  func(string) string
	client    *http.Client
	logger    *infra.Logger
}

type ImageRequest struct {
	Prompt    string
	Model     string
	Image     []byte
	ImageMIME string
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
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

type chatResponse struct {
	Choices []struct {
		Message responseMessage `json:"message"`
	} `json:"choices"`
}

type responseMessage struct {
	Content json.RawMessage `json:"content"`
	Image   string          `json:"image,omitempty"`
	Images  []contentPart   `json:"images,omitempty"`
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("chatimage: base url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		l := zerolog.New(io.Discard)
		logger = &l
	}
	name := opts.Name
	if name == "" {
		name = "chat"
	}
	return &Client{
		name:      name,
		apiKey:    strings.TrimSpace(opts.APIKey),
		baseURL:   baseURL,
		maxTokens: opts.MaxTokens,
		headers:   opts.Headers,
		modelMap:  opts.ModelMap,
		client:    client,
		logger:    logger,
	}, nil
}

func (c *Client) Name() string { return c.name }

// GenerateImage sends the prompt (and optional input image as a data URI) and
// returns the decoded image bytes from the first choice.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	model := req.Model
	if c.modelMap != nil {
		model = c.modelMap(model)
	}

	var parts []contentPart
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image)},
		})
	}
	parts = append(parts, contentPart{Type: "text", Text: req.Prompt})

	payload := chatRequest{
		Model:     model,
		Messages:  []chatMessage{{Role: "user", Content: parts}},
		MaxTokens: c.maxTokens,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", c.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: http request: %w", c.name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%s: status %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w: no choices", c.name, ErrNoImage)
	}

	data, err := c.extractImage(ctx, out.Choices[0].Message)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	c.logger.Debug().
		Str("provider", c.name).
		Str("model", model).
		Int("bytes", len(data)).
		Msg("chatimage: generated image")
	return data, nil
}

func (c *Client) extractImage(ctx context.Context, msg responseMessage) ([]byte, error) {
	if msg.Image != "" {
		return decodeBase64(msg.Image)
	}
	for _, img := range msg.Images {
		if img.ImageURL != nil && img.ImageURL.URL != "" {
			return c.resolveURL(ctx, img.ImageURL.URL)
		}
	}

	var text string
	if err := json.Unmarshal(msg.Content, &text); err == nil {
		return c.fromText(ctx, text)
	}
	var parts []contentPart
	if err := json.Unmarshal(msg.Content, &parts); err == nil {
		for _, p := range parts {
			if p.ImageURL != nil && p.ImageURL.URL != "" {
				return c.resolveURL(ctx, p.ImageURL.URL)
			}
		}
		for _, p := range parts {
			if data, err := c.fromText(ctx, p.Text); err == nil {
				return data, nil
			}
		}
	}
	return nil, ErrNoImage
}

func (c *Client) fromText(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "data:image"); idx >= 0 {
		return decodeDataURI(text[idx:])
	}
	if match := imageURLPattern.FindString(text); match != "" {
		return c.download(ctx, match)
	}
	return nil, ErrNoImage
}

func (c *Client) resolveURL(ctx context.Context, u string) ([]byte, error) {
	if strings.HasPrefix(u, "data:") {
		return decodeDataURI(u)
	}
	return c.download(ctx, u)
}

func (c *Client) download(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	return data, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	_, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data uri")
	}
	if end := strings.IndexAny(payload, " \t\r\n)\"'"); end >= 0 {
		payload = payload[:end]
	}
	return decodeBase64(payload)
}

func decodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	return data, nil
}

// OpenRouterModel maps a native Gemini model name onto the OpenRouter catalog:
// anything containing "pro" goes to the pro preview, the rest to flash.
func OpenRouterModel(model string) string {
	if strings.Contains(strings.ToLower(model), "pro") {
		return OpenRouterProModel
	}
	return OpenRouterFlashModel
}
