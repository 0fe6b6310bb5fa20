// Package ai talks to an Ollama-hosted vision-language model to classify
// photos into season/category and extract object keywords.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"photo-gallery/internal/models"
)

const (
	// maxImageSide caps the longer side of the image sent to the model.
	maxImageSide   = 1024
	encodeQuality  = 85
	requestTimeout = 60 * time.Second
)

const taggingPrompt = `Analyze this photo.

1. Determine the season (Spring/Summer/Autumn/Winter).

2. Determine the scene category (Landscape/Portrait/Activity/Documentary).

3. Extract the key objects in the frame (at most 5) as short labels.

Reply with raw JSON only, no Markdown fencing, in this format:

{
    "season": "...",
    "category": "...",
    "objects": ["...", "..."]
}`

// Config is the immutable client configuration.
type Config struct {
	BaseURL string
	Model   string
	Enabled bool
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		log: log,
	}
}

// Enabled reports whether the client is configured to run at all.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled
}

// Analyze classifies the image at imagePath. It returns (nil, nil) when the
// client is disabled and (nil, err) on any transport or endpoint failure;
// there are no retries. A syntactically broken but 2xx model answer is
// normalized to the default triple instead of failing.
func (c *Client) Analyze(ctx context.Context, imagePath string) (*models.TagResult, error) {
	if !c.cfg.Enabled {
		c.log.Info("ai tagging disabled, skipping analysis")
		return nil, nil
	}

	encoded, err := encodeImage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	raw, err := c.generate(ctx, encoded)
	if err != nil {
		return nil, err
	}

	return c.parseResponse(raw), nil
}

// encodeImage loads the image, flattens transparency onto white, downscales
// the longer side to maxImageSide and returns base64-encoded JPEG bytes.
func encodeImage(path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", err
	}

	// Flatten alpha and indexed color onto a white background.
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	flat := imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)

	if flat.Bounds().Dx() > maxImageSide || flat.Bounds().Dy() > maxImageSide {
		flat = imaging.Fit(flat, maxImageSide, maxImageSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(encodeQuality)); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (c *Client) generate(ctx context.Context, imageBase64 string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":  c.cfg.Model,
		"prompt": taggingPrompt,
		"images": []string{imageBase64},
		"stream": false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate payload: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return out.Response, nil
}

// parseResponse normalizes the model's free-text answer into a TagResult.
// Markdown code fences are stripped; season/category outside the closed
// sets are coerced to their fallback value; objects is truncated to 5.
func (c *Client) parseResponse(text string) *models.TagResult {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	fallback := &models.TagResult{Season: "Spring", Category: "Landscape", Objects: []string{}}

	var raw struct {
		Season   *string         `json:"season"`
		Category *string         `json:"category"`
		Objects  json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		c.log.Error("unparseable model answer, using defaults", "err", err, "text", text)
		return fallback
	}
	if raw.Season == nil || raw.Category == nil || raw.Objects == nil {
		c.log.Error("model answer missing required fields, using defaults", "text", text)
		return fallback
	}

	res := &models.TagResult{Season: *raw.Season, Category: *raw.Category}
	if !models.ValidSeason(res.Season) {
		c.log.Warn("invalid season from model, coercing", "season", res.Season)
		res.Season = "Spring"
	}
	if !models.ValidCategory(res.Category) {
		c.log.Warn("invalid category from model, coercing", "category", res.Category)
		res.Category = "Landscape"
	}

	var objects []any
	if err := json.Unmarshal(raw.Objects, &objects); err != nil {
		objects = nil
	}
	res.Objects = []string{}
	for _, o := range objects {
		if len(res.Objects) == 5 {
			break
		}
		res.Objects = append(res.Objects, fmt.Sprint(o))
	}
	return res
}
