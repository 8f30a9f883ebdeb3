// Command chat is an interactive retrieval-augmented chat client.
//
//	chat [options] ask       start a conversation (default)
//	chat [options] history   print archived exchanges for a session
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"

	"rag-chat/internal/config"
	"rag-chat/internal/console"
	"rag-chat/internal/integrations/openai"
	"rag-chat/internal/integrations/paramstore"
	"rag-chat/internal/repository"
	"rag-chat/internal/usecase"
)

type options struct {
	config.Chat
	Logging config.Logging `group:"Logging"`

	Ask     askCmd     `command:"ask" description:"Start an interactive conversation"`
	History historyCmd `command:"history" description:"Print archived exchanges for a session"`
}

var opts options

type askCmd struct{}

func (c *askCmd) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := config.NewLogger(opts.Logging, false)
	slog.SetDefault(logger)

	if err := opts.Validate(); err != nil {
		return err
	}
	awsCfg, err := loadAWS(ctx, opts.NeedsParamStore() || opts.Archive.Table != "")
	if err != nil {
		return err
	}
	if opts.NeedsParamStore() {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return err
		}
		if err := opts.ResolveSecrets(ctx, ssmClient); err != nil {
			return err
		}
	}

	llm, err := openai.NewClient(opts.OpenAI.Endpoint, opts.OpenAI.APIKey,
		openai.WithAPIVersion(opts.OpenAI.APIVersion),
		openai.WithTimeout(opts.OpenAI.Timeout),
	)
	if err != nil {
		return err
	}

	svcOpts := []usecase.Option{usecase.WithLogger(logger)}
	if opts.SystemPrompt != "" {
		svcOpts = append(svcOpts, usecase.WithSystemPrompt(opts.SystemPrompt))
	}
	if opts.Archive.Table != "" {
		archive, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), opts.Archive.Table)
		if err != nil {
			return err
		}
		svcOpts = append(svcOpts, usecase.WithRecorder(archive))
	}
	svc, err := usecase.NewChatService(llm, opts.CompletionOptions(), svcOpts...)
	if err != nil {
		return err
	}

	sess := svc.NewSession()
	logger.Debug("session started", "session_id", sess.ID(), "retrieval", opts.RetrievalEnabled())
	if opts.Archive.Table != "" {
		fmt.Printf("Session %s\n", color.New(color.FgCyan).Sprint(sess.ID()))
	}

	loop, err := console.NewLoop(svc, sess, svc.SystemPrompt(), os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type historyCmd struct {
	Limit int `long:"limit" default:"20" description:"maximum number of exchanges to print"`
	Args  struct {
		SessionID string `positional-arg-name:"SESSION_ID" required:"yes"`
	} `positional-args:"yes"`
}

func (c *historyCmd) Execute(_ []string) error {
	ctx := context.Background()
	slog.SetDefault(config.NewLogger(opts.Logging, false))

	if opts.Archive.Table == "" {
		return errors.New("TRANSCRIPT_TABLE is not set")
	}
	awsCfg, err := loadAWS(ctx, true)
	if err != nil {
		return err
	}
	archive, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), opts.Archive.Table)
	if err != nil {
		return err
	}
	msgs, err := archive.GetHistory(ctx, c.Args.SessionID, c.Limit)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		fmt.Println("No archived exchanges.")
		return nil
	}

	you := color.New(color.FgGreen, color.Bold)
	ai := color.New(color.FgCyan, color.Bold)
	for _, m := range msgs {
		you.Print("You: ")
		fmt.Println(m.Question)
		ai.Print("AI: ")
		fmt.Println(m.Answer)
	}
	return nil
}

func loadAWS(ctx context.Context, needed bool) (aws.Config, error) {
	if !needed {
		return aws.Config{}, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return cfg, nil
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.SubcommandsOptional = true

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		slog.Error("chat failed", "err", err)
		os.Exit(1)
	}
	if parser.Active == nil {
		if err := opts.Ask.Execute(nil); err != nil {
			slog.Error("chat failed", "err", err)
			os.Exit(1)
		}
	}
}
