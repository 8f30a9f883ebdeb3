package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"rag-chat/handler"
	"rag-chat/internal/config"
	"rag-chat/internal/integrations/openai"
	"rag-chat/internal/integrations/paramstore"
	"rag-chat/internal/repository"
	"rag-chat/internal/usecase"
)

type settings struct {
	config.Chat
	Logging config.Logging `group:"Logging"`
}

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	var cfg settings
	if err := config.FromEnv(&cfg); err != nil {
		slog.Error("failed to read configuration", "err", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Logging, true)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	if cfg.NeedsParamStore() {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			logger.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		if err := cfg.ResolveSecrets(ctx, ssmClient); err != nil {
			logger.Error("failed to resolve secrets", "err", err)
			os.Exit(1)
		}
	}

	llm, err := openai.NewClient(cfg.OpenAI.Endpoint, cfg.OpenAI.APIKey,
		openai.WithAPIVersion(cfg.OpenAI.APIVersion),
		openai.WithTimeout(cfg.OpenAI.Timeout),
	)
	if err != nil {
		logger.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	opts := []usecase.Option{
		usecase.WithLogger(logger),
		usecase.WithMaxExchanges(cfg.MaxExchanges),
	}
	if cfg.SystemPrompt != "" {
		opts = append(opts, usecase.WithSystemPrompt(cfg.SystemPrompt))
	}
	if cfg.Archive.Table != "" {
		archive, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.Archive.Table)
		if err != nil {
			logger.Error("failed to create archive client", "err", err)
			os.Exit(1)
		}
		opts = append(opts, usecase.WithRecorder(archive))
	}

	// ---- Handler ----
	chatService, err := usecase.NewChatService(llm, cfg.CompletionOptions(), opts...)
	if err != nil {
		logger.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService, logger)
	if err != nil {
		logger.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
