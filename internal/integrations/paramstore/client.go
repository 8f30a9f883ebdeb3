package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ReferencePrefix marks a configuration value that names an SSM parameter
// instead of holding the secret itself.
const ReferencePrefix = "ssm:"

// ssmAPI is the subset of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter fetches a decrypted parameter value by name. *Client implements it.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client reads secrets from SSM Parameter Store.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// tokenPayload is the JSON shape accepted for secret parameters.
type tokenPayload struct {
	Token string `json:"token"`
}

// IsReference reports whether value is an "ssm:/name" reference.
func IsReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), ReferencePrefix)
}

// ResolveSecret returns value unchanged unless it is an "ssm:" reference, in
// which case the parameter is fetched. A parameter holding a JSON object is
// read through its "token" field; anything else is used as-is.
func ResolveSecret(ctx context.Context, getter Getter, value string) (string, error) {
	if !IsReference(value) {
		return value, nil
	}
	if getter == nil {
		return "", errors.New("paramstore: getter is nil")
	}
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), ReferencePrefix))
	if name == "" {
		return "", errors.New("paramstore: secret parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("paramstore: fetch secret: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		if raw == "" {
			return "", errors.New("paramstore: secret is empty")
		}
		return raw, nil
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal secret value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("paramstore: secret is empty")
	}
	return tp.Token, nil
}
