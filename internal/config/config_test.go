package config

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	vals map[string]string
	err  error
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.vals[name], nil
}

func validChat() Chat {
	return Chat{
		OpenAI: OpenAI{
			APIKey:      "key",
			Endpoint:    "https://res.openai.azure.com",
			APIVersion:  "2024-10-21",
			Deployment:  "chat-deploy",
			Temperature: -1,
		},
		Search: Search{QueryType: "vector", TopN: 5},
	}
}

func TestFromEnv_ReadsChatSettings(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("OPENAI_ENDPOINT", "https://res.openai.azure.com/")
	t.Setenv("CHAT_DEPLOYMENT_NAME", "gpt-4o")
	t.Setenv("TEMPERATURE", "0.4")
	t.Setenv("SEARCH_ENDPOINT", "https://search.example.net")
	t.Setenv("SEARCH_API_KEY", "ssm:/rag-chat/search-key")
	t.Setenv("SEARCH_INDEX_NAME", "travel-index")
	t.Setenv("EMBEDDING_DEPLOYMENT_NAME", "embed")
	t.Setenv("TRANSCRIPT_TABLE", "transcripts")

	var cfg Chat
	require.NoError(t, FromEnv(&cfg))
	require.Equal(t, "env-key", cfg.OpenAI.APIKey)
	require.Equal(t, "gpt-4o", cfg.OpenAI.Deployment)
	require.Equal(t, "2024-10-21", cfg.OpenAI.APIVersion)
	require.Equal(t, 60*time.Second, cfg.OpenAI.Timeout)
	require.InDelta(t, 0.4, cfg.OpenAI.Temperature, 1e-9)
	require.Equal(t, "vector", cfg.Search.QueryType)
	require.Equal(t, 5, cfg.Search.TopN)
	require.Equal(t, "transcripts", cfg.Archive.Table)
	require.Equal(t, 10, cfg.MaxExchanges)
	require.True(t, cfg.RetrievalEnabled())
	require.True(t, cfg.NeedsParamStore())
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Defaults(t *testing.T) {
	var cfg Chat
	require.NoError(t, FromEnv(&cfg))
	require.Equal(t, float64(-1), cfg.OpenAI.Temperature)
	require.False(t, cfg.RetrievalEnabled())
	require.Empty(t, cfg.Archive.Table)
}

func TestChat_Validate_ReportsAllMissing(t *testing.T) {
	cfg := Chat{OpenAI: OpenAI{APIVersion: "2024-10-21"}, Search: Search{Endpoint: "https://search", QueryType: "vector"}}
	err := cfg.Validate()
	require.Error(t, err)
	for _, name := range []string{"OPENAI_API_KEY", "CHAT_DEPLOYMENT_NAME", "OPENAI_ENDPOINT", "SEARCH_API_KEY", "SEARCH_INDEX_NAME", "EMBEDDING_DEPLOYMENT_NAME"} {
		require.Contains(t, err.Error(), name)
	}
}

func TestChat_Validate_OpenAICompatibleNeedsNoEndpoint(t *testing.T) {
	cfg := validChat()
	cfg.OpenAI.APIVersion = ""
	cfg.OpenAI.Endpoint = ""
	require.NoError(t, cfg.Validate())
}

func TestChat_Validate_KeywordSearchNeedsNoEmbedding(t *testing.T) {
	cfg := validChat()
	cfg.Search = Search{Endpoint: "https://search", APIKey: "k", IndexName: "idx", QueryType: "simple"}
	require.NoError(t, cfg.Validate())
}

func TestChat_CompletionOptions(t *testing.T) {
	cfg := validChat()
	opts := cfg.CompletionOptions()
	require.Equal(t, "chat-deploy", opts.Model)
	require.Nil(t, opts.Temperature)
	require.Nil(t, opts.Retrieval)

	cfg.OpenAI.Temperature = 0.4
	cfg.Search = Search{Endpoint: " https://search ", APIKey: "k", IndexName: "idx", QueryType: "vector", EmbeddingDeployment: "embed", TopN: 3}
	opts = cfg.CompletionOptions()
	require.NotNil(t, opts.Temperature)
	require.InDelta(t, 0.4, *opts.Temperature, 1e-9)
	require.NotNil(t, opts.Retrieval)
	require.Equal(t, "https://search", opts.Retrieval.Endpoint)
	require.Equal(t, "idx", opts.Retrieval.IndexName)
	require.Equal(t, "embed", opts.Retrieval.EmbeddingDeployment)
	require.Equal(t, 3, opts.Retrieval.TopNDocuments)
}

func TestChat_ResolveSecrets(t *testing.T) {
	cfg := validChat()
	cfg.OpenAI.APIKey = "ssm:/rag-chat/openai"
	cfg.Search.APIKey = "plain-search-key"
	g := &fakeGetter{vals: map[string]string{"/rag-chat/openai": `{"token":"resolved"}`}}

	require.NoError(t, cfg.ResolveSecrets(context.Background(), g))
	require.Equal(t, "resolved", cfg.OpenAI.APIKey)
	require.Equal(t, "plain-search-key", cfg.Search.APIKey)
	require.False(t, cfg.NeedsParamStore())
}

func TestChat_ResolveSecrets_Error(t *testing.T) {
	cfg := validChat()
	cfg.Search.APIKey = "ssm:/rag-chat/search"
	err := cfg.ResolveSecrets(context.Background(), &fakeGetter{err: errors.New("access denied")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "SEARCH_API_KEY")
	require.Contains(t, err.Error(), "access denied")
}

func TestVision_ValidateAndResolve(t *testing.T) {
	v := Vision{}
	err := v.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "VISION_ENDPOINT")
	require.Contains(t, err.Error(), "VISION_SUBSCRIPTION_KEY")

	v = Vision{Endpoint: "https://vision", SubscriptionKey: "ssm:/vision"}
	require.NoError(t, v.Validate())
	require.NoError(t, v.ResolveSecrets(context.Background(), &fakeGetter{vals: map[string]string{"/vision": "vk"}}))
	require.Equal(t, "vk", v.SubscriptionKey)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	require.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	require.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}
