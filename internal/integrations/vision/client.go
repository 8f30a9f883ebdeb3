// Package vision is a client for the Computer Vision v3.2 REST API: image
// analysis, object detection and OCR over raw image bytes.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apiPath = "vision/v3.2/"

// DefaultFeatures is the visual feature set requested by Analyze when none are given.
var DefaultFeatures = []string{"Categories", "Description", "Color"}

type Analysis struct {
	Categories []struct {
		Name  string  `json:"name"`
		Score float64 `json:"score"`
	} `json:"categories"`
	Description struct {
		Tags     []string `json:"tags"`
		Captions []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"captions"`
	} `json:"description"`
	Color struct {
		DominantColorForeground string   `json:"dominantColorForeground"`
		DominantColorBackground string   `json:"dominantColorBackground"`
		DominantColors          []string `json:"dominantColors"`
		AccentColor             string   `json:"accentColor"`
		IsBWImg                 bool     `json:"isBwImg"`
	} `json:"color"`
	RequestID string `json:"requestId"`
}

type Rectangle struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type DetectedObject struct {
	Rectangle  Rectangle `json:"rectangle"`
	Object     string    `json:"object"`
	Confidence float64   `json:"confidence"`
}

type Detection struct {
	Objects   []DetectedObject `json:"objects"`
	RequestID string           `json:"requestId"`
}

type OCRWord struct {
	BoundingBox string `json:"boundingBox"`
	Text        string `json:"text"`
}

type OCRLine struct {
	BoundingBox string    `json:"boundingBox"`
	Words       []OCRWord `json:"words"`
}

type OCRRegion struct {
	BoundingBox string    `json:"boundingBox"`
	Lines       []OCRLine `json:"lines"`
}

type OCRResult struct {
	Language    string      `json:"language"`
	Orientation string      `json:"orientation"`
	Regions     []OCRRegion `json:"regions"`
}

// Text joins recognized words with spaces, one line per OCR line.
func (r OCRResult) Text() string {
	var lines []string
	for _, region := range r.Regions {
		for _, line := range region.Lines {
			words := make([]string, 0, len(line.Words))
			for _, w := range line.Words {
				words = append(words, w.Text)
			}
			lines = append(lines, strings.Join(words, " "))
		}
	}
	return strings.Join(lines, "\n")
}

// StatusError captures non-2xx responses from the vision endpoint.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vision: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

type Client struct {
	endpoint   string
	key        string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(endpoint, subscriptionKey string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("vision: endpoint must not be empty")
	}
	subscriptionKey = strings.TrimSpace(subscriptionKey)
	if subscriptionKey == "" {
		return nil, errors.New("vision: subscription key must not be empty")
	}
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/") + "/",
		key:        subscriptionKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Analyze describes the image. Features default to DefaultFeatures.
func (c *Client) Analyze(ctx context.Context, image []byte, features ...string) (Analysis, error) {
	if len(features) == 0 {
		features = DefaultFeatures
	}
	q := url.Values{}
	q.Set("visualFeatures", strings.Join(features, ","))

	var out Analysis
	if err := c.post(ctx, "analyze", q, image, &out); err != nil {
		return Analysis{}, err
	}
	return out, nil
}

func (c *Client) Detect(ctx context.Context, image []byte) (Detection, error) {
	var out Detection
	if err := c.post(ctx, "detect", nil, image, &out); err != nil {
		return Detection{}, err
	}
	return out, nil
}

func (c *Client) OCR(ctx context.Context, image []byte) (OCRResult, error) {
	var out OCRResult
	if err := c.post(ctx, "ocr", nil, image, &out); err != nil {
		return OCRResult{}, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, operation string, query url.Values, image []byte, out any) error {
	if len(image) == 0 {
		return errors.New("vision: image must not be empty")
	}
	endpoint := c.endpoint + apiPath + operation
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("vision: create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vision: %s request failed: %w", operation, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &StatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 4<<20)).Decode(out); err != nil {
		return fmt.Errorf("vision: decode %s response: %w", operation, err)
	}
	return nil
}
