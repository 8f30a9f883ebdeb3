// Command vision sends an image to the Computer Vision API.
//
//	vision analyze IMAGE   caption, tags, categories and colours
//	vision detect IMAGE    detected objects with bounding rectangles
//	vision ocr IMAGE       recognized text
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"

	"rag-chat/internal/config"
	"rag-chat/internal/integrations/paramstore"
	"rag-chat/internal/integrations/vision"
)

type imageArgs struct {
	Image string `positional-arg-name:"IMAGE" required:"yes"`
}

type options struct {
	config.Vision `group:"Computer vision"`
	Logging       config.Logging `group:"Logging"`

	Analyze analyzeCmd `command:"analyze" description:"Describe an image"`
	Detect  detectCmd  `command:"detect" description:"Detect objects in an image"`
	OCR     ocrCmd     `command:"ocr" description:"Extract printed text from an image"`
}

var opts options

var heading = color.New(color.FgGreen, color.Bold)

type analyzeCmd struct {
	Features []string  `long:"feature" description:"visual feature to request (repeatable)"`
	Args     imageArgs `positional-args:"yes"`
}

func (c *analyzeCmd) Execute(_ []string) error {
	ctx := context.Background()
	client, image, err := prepare(ctx, c.Args.Image)
	if err != nil {
		return err
	}
	res, err := client.Analyze(ctx, image, c.Features...)
	if err != nil {
		return err
	}

	heading.Println("Analysis Result:")
	for _, caption := range res.Description.Captions {
		fmt.Printf("  caption: %s (%.2f)\n", caption.Text, caption.Confidence)
	}
	if len(res.Description.Tags) > 0 {
		fmt.Printf("  tags: %s\n", strings.Join(res.Description.Tags, ", "))
	}
	for _, cat := range res.Categories {
		fmt.Printf("  category: %s (%.2f)\n", cat.Name, cat.Score)
	}
	if len(res.Color.DominantColors) > 0 {
		fmt.Printf("  colours: %s\n", strings.Join(res.Color.DominantColors, ", "))
	}
	return nil
}

type detectCmd struct {
	Args imageArgs `positional-args:"yes"`
}

func (c *detectCmd) Execute(_ []string) error {
	ctx := context.Background()
	client, image, err := prepare(ctx, c.Args.Image)
	if err != nil {
		return err
	}
	res, err := client.Detect(ctx, image)
	if err != nil {
		return err
	}
	if len(res.Objects) == 0 {
		fmt.Println("No objects detected.")
		return nil
	}

	heading.Println("Detected objects:")
	for _, obj := range res.Objects {
		r := obj.Rectangle
		fmt.Printf("  %-20s %.2f  x=%d y=%d w=%d h=%d\n", obj.Object, obj.Confidence, r.X, r.Y, r.W, r.H)
	}
	return nil
}

type ocrCmd struct {
	Args imageArgs `positional-args:"yes"`
}

func (c *ocrCmd) Execute(_ []string) error {
	ctx := context.Background()
	client, image, err := prepare(ctx, c.Args.Image)
	if err != nil {
		return err
	}
	res, err := client.OCR(ctx, image)
	if err != nil {
		return err
	}
	text := res.Text()
	if text == "" {
		fmt.Println("No text detected.")
		return nil
	}

	heading.Printf("OCR Result (%s):\n", res.Language)
	fmt.Println(text)
	return nil
}

func prepare(ctx context.Context, path string) (*vision.Client, []byte, error) {
	slog.SetDefault(config.NewLogger(opts.Logging, false))

	if err := opts.Vision.Validate(); err != nil {
		return nil, nil, err
	}
	if paramstore.IsReference(opts.Vision.SubscriptionKey) {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, nil, err
		}
		if err := opts.Vision.ResolveSecrets(ctx, ssmClient); err != nil {
			return nil, nil, err
		}
	}

	image, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read image: %w", err)
	}
	client, err := vision.NewClient(opts.Vision.Endpoint, opts.Vision.SubscriptionKey)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("sending image", "path", path, "bytes", len(image))
	return client, image, nil
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		slog.Error("vision failed", "err", err)
		os.Exit(1)
	}
}
