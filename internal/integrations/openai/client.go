package openai

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

	"rag-chat/internal/domain"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 60 * time.Second
)

// chatRequest is the request shape for the Chat Completions endpoint. Azure
// deployments accept the same body plus data_sources.
type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []domain.Turn `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	DataSources []dataSource  `json:"data_sources,omitempty"`
}

type dataSource struct {
	Type       string               `json:"type"`
	Parameters searchDataParameters `json:"parameters"`
}

type searchDataParameters struct {
	Endpoint            string               `json:"endpoint"`
	IndexName           string               `json:"index_name"`
	Authentication      searchAuthentication `json:"authentication"`
	QueryType           string               `json:"query_type,omitempty"`
	EmbeddingDependency *embeddingDependency `json:"embedding_dependency,omitempty"`
	InScope             bool                 `json:"in_scope"`
	TopNDocuments       int                  `json:"top_n_documents,omitempty"`
}

type searchAuthentication struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

type embeddingDependency struct {
	Type           string `json:"type"`
	DeploymentName string `json:"deployment_name"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Context *struct {
				Citations []domain.Citation `json:"citations"`
			} `json:"context,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

// ErrEmptyModel is wrapped by the ProviderError returned when no model or
// deployment is set.
var ErrEmptyModel = errors.New("model must not be empty")

// ProviderError describes a failed completion call. StatusCode is zero when
// no HTTP response was received.
type ProviderError struct {
	StatusCode int
	URL        string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("openai: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused client for Azure OpenAI deployments and
// OpenAI-compatible chat completion endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	apiVersion string
	httpClient *http.Client
}

type Option func(*Client)

// WithAPIVersion switches the client to Azure deployment routing.
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		c.apiVersion = strings.TrimSpace(version)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// NewClient creates a Client for baseURL. An empty baseURL targets the
// public OpenAI API.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	c := &Client{
		baseURL:    strings.TrimSpace(baseURL),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiVersion != "" && c.baseURL == "" {
		return nil, errors.New("openai: endpoint must not be empty for azure deployments")
	}
	return c, nil
}

// resolvedHTTPClient returns the configured HTTP client, or a default one if
// the field was cleared.
func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

func deploymentURL(endpoint, deployment, apiVersion string) string {
	base := strings.TrimRight(endpoint, "/")
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		base, url.PathEscape(deployment), url.QueryEscape(apiVersion))
}

func (c *Client) azure() bool {
	return c.apiVersion != ""
}

// Complete sends the transcript, in order, and returns the first choice.
func (c *Client) Complete(ctx context.Context, transcript []domain.Turn, opts domain.CompletionOptions) (domain.Completion, error) {
	if opts.Model == "" {
		return domain.Completion{}, &ProviderError{Message: "invalid request", Err: ErrEmptyModel}
	}

	endpoint := chatURL(c.baseURL)
	if c.azure() {
		endpoint = deploymentURL(c.baseURL, opts.Model, c.apiVersion)
	}

	body, err := json.Marshal(buildChatRequest(transcript, opts, c.azure()))
	if err != nil {
		return domain.Completion{}, &ProviderError{URL: endpoint, Message: "marshal request", Err: err}
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if reqErr != nil {
		return domain.Completion{}, &ProviderError{URL: endpoint, Message: "create request", Err: reqErr}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.azure() {
		req.Header.Set("api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	raw, err := c.doJSONRequest(req, endpoint)
	if err != nil {
		return domain.Completion{}, err
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return domain.Completion{}, &ProviderError{URL: endpoint, Message: "decode response", Err: decErr}
	}
	if len(payload.Choices) == 0 {
		return domain.Completion{}, &ProviderError{URL: endpoint, Message: "decode response", Err: errors.New("no choices in response")}
	}
	msg := payload.Choices[0].Message
	out := domain.Completion{Text: msg.Content}
	if msg.Context != nil {
		out.Citations = msg.Context.Citations
	}
	return out, nil
}

func buildChatRequest(transcript []domain.Turn, opts domain.CompletionOptions, azure bool) chatRequest {
	req := chatRequest{
		Messages:    transcript,
		Temperature: opts.Temperature,
	}
	if req.Messages == nil {
		req.Messages = []domain.Turn{}
	}
	// Azure routes by deployment in the URL.
	if !azure {
		req.Model = opts.Model
	}
	if r := opts.Retrieval; r != nil {
		req.DataSources = []dataSource{searchDataSource(*r)}
	}
	return req
}

func searchDataSource(r domain.RetrievalParams) dataSource {
	params := searchDataParameters{
		Endpoint:  r.Endpoint,
		IndexName: r.IndexName,
		Authentication: searchAuthentication{
			Type: "api_key",
			Key:  r.APIKey,
		},
		QueryType:     r.QueryType,
		InScope:       r.InScope,
		TopNDocuments: r.TopNDocuments,
	}
	if r.EmbeddingDeployment != "" {
		params.EmbeddingDependency = &embeddingDependency{
			Type:           "deployment_name",
			DeploymentName: r.EmbeddingDeployment,
		}
	}
	return dataSource{Type: "azure_search", Parameters: params}
}

func (c *Client) doJSONRequest(req *http.Request, endpoint string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, &ProviderError{URL: endpoint, Message: "request failed", Err: doErr}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &ProviderError{
			StatusCode: res.StatusCode,
			URL:        endpoint,
			Message:    string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, &ProviderError{URL: endpoint, Message: "read response body", Err: err}
	}
	return buf, nil
}
