// Package config declares the environment-backed settings shared by the
// binaries. Structs are parsed with github.com/jessevdk/go-flags so every
// setting can come from a flag or its environment variable.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"

	"rag-chat/internal/domain"
	"rag-chat/internal/integrations/paramstore"
)

type OpenAI struct {
	APIKey      string        `long:"openai-api-key" env:"OPENAI_API_KEY" description:"API key for the chat endpoint (or ssm:/parameter)"`
	Endpoint    string        `long:"openai-endpoint" env:"OPENAI_ENDPOINT" description:"Azure OpenAI resource endpoint or OpenAI-compatible base URL"`
	APIVersion  string        `long:"openai-api-version" env:"OPENAI_API_VERSION" default:"2024-10-21" description:"Azure API version; empty selects OpenAI-compatible routing"`
	Deployment  string        `long:"deployment" env:"CHAT_DEPLOYMENT_NAME" description:"chat deployment or model name"`
	Temperature float64       `long:"temperature" env:"TEMPERATURE" default:"-1" description:"sampling temperature; negative leaves the service default"`
	Timeout     time.Duration `long:"openai-timeout" env:"OPENAI_TIMEOUT" default:"60s" description:"completion request timeout"`
}

type Search struct {
	Endpoint            string `long:"search-endpoint" env:"SEARCH_ENDPOINT" description:"search service endpoint; enables retrieval augmentation"`
	APIKey              string `long:"search-api-key" env:"SEARCH_API_KEY" description:"search service key (or ssm:/parameter)"`
	IndexName           string `long:"search-index" env:"SEARCH_INDEX_NAME" description:"search index name"`
	EmbeddingDeployment string `long:"embedding-deployment" env:"EMBEDDING_DEPLOYMENT_NAME" description:"embedding deployment used for vector queries"`
	QueryType           string `long:"search-query-type" env:"SEARCH_QUERY_TYPE" default:"vector" description:"simple, semantic, vector, vector_simple_hybrid or vector_semantic_hybrid"`
	InScope             bool   `long:"search-in-scope" env:"SEARCH_IN_SCOPE" description:"restrict answers to indexed documents"`
	TopN                int    `long:"search-top-n" env:"SEARCH_TOP_N" default:"5" description:"number of documents to ground on"`
}

type Vision struct {
	Endpoint        string `long:"vision-endpoint" env:"VISION_ENDPOINT" description:"computer vision resource endpoint"`
	SubscriptionKey string `long:"vision-key" env:"VISION_SUBSCRIPTION_KEY" description:"computer vision subscription key (or ssm:/parameter)"`
}

type Archive struct {
	Table string `long:"transcript-table" env:"TRANSCRIPT_TABLE" description:"DynamoDB table for archived exchanges; empty disables archiving"`
}

type Logging struct {
	Level string `long:"log-level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"log level"`
}

// Chat holds everything needed to build a ChatService.
type Chat struct {
	OpenAI       OpenAI  `group:"Chat completions"`
	Search       Search  `group:"Retrieval"`
	Archive      Archive `group:"Archive"`
	SystemPrompt string  `long:"system-prompt" env:"SYSTEM_PROMPT" description:"system prompt seeding each session (defaults to the travel assistant prompt)"`
	MaxExchanges int     `long:"max-exchanges" env:"MAX_EXCHANGES" default:"10" description:"history limit for web sessions"`
}

// Validate reports every missing required value at once.
func (c *Chat) Validate() error {
	var missing []string
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if strings.TrimSpace(c.OpenAI.Deployment) == "" {
		missing = append(missing, "CHAT_DEPLOYMENT_NAME")
	}
	if c.OpenAI.APIVersion != "" && strings.TrimSpace(c.OpenAI.Endpoint) == "" {
		missing = append(missing, "OPENAI_ENDPOINT")
	}
	if c.RetrievalEnabled() {
		if strings.TrimSpace(c.Search.APIKey) == "" {
			missing = append(missing, "SEARCH_API_KEY")
		}
		if strings.TrimSpace(c.Search.IndexName) == "" {
			missing = append(missing, "SEARCH_INDEX_NAME")
		}
		if strings.HasPrefix(c.Search.QueryType, "vector") && strings.TrimSpace(c.Search.EmbeddingDeployment) == "" {
			missing = append(missing, "EMBEDDING_DEPLOYMENT_NAME")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Chat) RetrievalEnabled() bool {
	return strings.TrimSpace(c.Search.Endpoint) != ""
}

// CompletionOptions maps the settings onto a provider request.
func (c *Chat) CompletionOptions() domain.CompletionOptions {
	opts := domain.CompletionOptions{Model: strings.TrimSpace(c.OpenAI.Deployment)}
	if c.OpenAI.Temperature >= 0 {
		t := c.OpenAI.Temperature
		opts.Temperature = &t
	}
	if c.RetrievalEnabled() {
		opts.Retrieval = &domain.RetrievalParams{
			Endpoint:            strings.TrimSpace(c.Search.Endpoint),
			IndexName:           strings.TrimSpace(c.Search.IndexName),
			APIKey:              c.Search.APIKey,
			QueryType:           c.Search.QueryType,
			EmbeddingDeployment: strings.TrimSpace(c.Search.EmbeddingDeployment),
			InScope:             c.Search.InScope,
			TopNDocuments:       c.Search.TopN,
		}
	}
	return opts
}

// NeedsParamStore reports whether any secret is an ssm: reference.
func (c *Chat) NeedsParamStore() bool {
	return paramstore.IsReference(c.OpenAI.APIKey) || paramstore.IsReference(c.Search.APIKey)
}

// ResolveSecrets replaces ssm: references with their parameter values.
func (c *Chat) ResolveSecrets(ctx context.Context, getter paramstore.Getter) error {
	var err error
	if c.OpenAI.APIKey, err = paramstore.ResolveSecret(ctx, getter, c.OpenAI.APIKey); err != nil {
		return fmt.Errorf("config: resolve OPENAI_API_KEY: %w", err)
	}
	if c.Search.APIKey, err = paramstore.ResolveSecret(ctx, getter, c.Search.APIKey); err != nil {
		return fmt.Errorf("config: resolve SEARCH_API_KEY: %w", err)
	}
	return nil
}

func (v *Vision) Validate() error {
	var missing []string
	if strings.TrimSpace(v.Endpoint) == "" {
		missing = append(missing, "VISION_ENDPOINT")
	}
	if strings.TrimSpace(v.SubscriptionKey) == "" {
		missing = append(missing, "VISION_SUBSCRIPTION_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (v *Vision) ResolveSecrets(ctx context.Context, getter paramstore.Getter) error {
	key, err := paramstore.ResolveSecret(ctx, getter, v.SubscriptionKey)
	if err != nil {
		return fmt.Errorf("config: resolve VISION_SUBSCRIPTION_KEY: %w", err)
	}
	v.SubscriptionKey = key
	return nil
}

// FromEnv fills cfg from the environment only, applying defaults.
func FromEnv(cfg any) error {
	parser := flags.NewParser(cfg, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(nil); err != nil {
		return fmt.Errorf("config: parse environment: %w", err)
	}
	return nil
}

// NewLogger builds the process logger. JSON output is meant for Lambda.
func NewLogger(l Logging, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(l.Level)}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
