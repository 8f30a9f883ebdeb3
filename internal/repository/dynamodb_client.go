package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"rag-chat/internal/domain"
)

const (
	skPrefixMsg    = "MSG#"
	skMeta         = "META#"
	statusComplete = "complete"
	ttlDuration    = 30 * 24 * time.Hour // 30-day TTL

	// Fixed width so sort keys order the same way as their timestamps.
	skTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client archives completed exchanges in a single DynamoDB table. Archived
// exchanges are for audit and display only; sessions are never rebuilt from them.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// msgSK returns the sort key for a message at ts.
func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(skTimeLayout)
}

func ttlValue(now time.Time) int64 {
	return now.Add(ttlDuration).Unix()
}

// GetHistory returns up to limit archived exchanges, oldest first.
func (c *Client) GetHistory(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("repository: GetHistory: session id is required")
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Read newest first so LIMIT favors the most recent exchanges.
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// GetTurnCount returns the archived exchange count for a session.
func (c *Client) GetTurnCount(ctx context.Context, sessionID string) (int, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: GetTurnCount get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}

	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return 0, fmt.Errorf("repository: GetTurnCount decode turns: %w", err)
	}
	return turns, nil
}

// SaveTurn writes the message and updated metadata in one transaction.
func (c *Client) SaveTurn(ctx context.Context, msg domain.Message, meta domain.SessionMeta) error {
	if msg.PK == "" || msg.SK == "" {
		return errors.New("repository: SaveTurn: message PK and SK are required")
	}
	if meta.PK == "" || meta.SK == "" {
		return errors.New("repository: SaveTurn: meta PK and SK are required")
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                messageItem(msg),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

// SaveCompletedTurn archives one answered exchange and the session's exchange count.
func (c *Client) SaveCompletedTurn(ctx context.Context, sessionID, question, answer string, turns int) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: SaveCompletedTurn: session id is required")
	}
	now := c.now()
	msg := NewMessage(sessionID, question, answer, now)
	meta := NewSessionMeta(sessionID, turns, now)
	if err := c.SaveTurn(ctx, msg, meta); err != nil {
		return fmt.Errorf("repository: SaveCompletedTurn: %w", err)
	}
	return nil
}

// NewMessage constructs a completed Message keyed by sessionID and now.
func NewMessage(sessionID, question, answer string, now time.Time) domain.Message {
	return domain.Message{
		PK:        sessionPK(sessionID),
		SK:        msgSK(now),
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Status:    statusComplete,
		TTL:       ttlValue(now),
	}
}

// NewSessionMeta constructs a SessionMeta record.
func NewSessionMeta(sessionID string, turns int, now time.Time) domain.SessionMeta {
	return domain.SessionMeta{
		PK:           sessionPK(sessionID),
		SK:           skMeta,
		SessionID:    sessionID,
		LastActivity: now.UTC().Format(time.RFC3339),
		Turns:        turns,
		TTL:          ttlValue(now),
	}
}

// itemToMessage converts a DynamoDB attribute map to a Message.
func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Message{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Message{}, err
	}
	question, err := strAttr(item, "question")
	if err != nil {
		return domain.Message{}, err
	}
	answer, _ := strAttr(item, "answer") // allow empty
	status, _ := strAttr(item, "status") // allow empty
	sessionID, _ := strAttr(item, "sessionId")

	return domain.Message{
		PK:        pk,
		SK:        sk,
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Status:    status,
	}, nil
}

func messageItem(msg domain.Message) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: msg.PK},
		"SK":        &types.AttributeValueMemberS{Value: msg.SK},
		"sessionId": &types.AttributeValueMemberS{Value: msg.SessionID},
		"question":  &types.AttributeValueMemberS{Value: msg.Question},
		"answer":    &types.AttributeValueMemberS{Value: msg.Answer},
		"status":    &types.AttributeValueMemberS{Value: msg.Status},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(msg.TTL, 10)},
	}
}

func metaItem(meta domain.SessionMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: meta.PK},
		"SK":           &types.AttributeValueMemberS{Value: meta.SK},
		"sessionId":    &types.AttributeValueMemberS{Value: meta.SessionID},
		"lastActivity": &types.AttributeValueMemberS{Value: meta.LastActivity},
		"turns":        &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Turns)},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.TTL, 10)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
