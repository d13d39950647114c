package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	skPrefixTurn     = "TURN#"
	skPrefixFeedback = "FB#"
	skPrefixStatus   = "STATUS#"
	skSection        = "SECTION"
	pkStatus         = "STATUS"

	entityTurn     = "turn"
	entityFeedback = "feedback"
	entityConfig   = "config"
	entityStatus   = "status_check"

	// Fixed-width nanoseconds keep lexical SK order equal to creation order.
	sortTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

	appendOnlyCondition = "attribute_not_exists(PK) AND attribute_not_exists(SK)"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Client wraps a single DynamoDB table holding turns, feedback records,
// config sections and status checks.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

var (
	nowUTC = func() time.Time { return time.Now().UTC() }
	newID  = func() string { return uuid.NewString() }
)

// sessionPK returns the partition key holding a session's turns.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func feedbackPK(sessionID string) string {
	return "FEEDBACK#" + sessionID
}

func configPK(sectionKey string) string {
	return "CONFIG#" + sectionKey
}

func sortTime(ts time.Time) string {
	return ts.UTC().Format(sortTimeLayout)
}

// turnSK orders turns by creation time; the id suffix keeps keys unique
// when two turns share a timestamp.
func turnSK(ts time.Time, turnID string) string {
	return skPrefixTurn + sortTime(ts) + "#" + turnID
}

func feedbackSK(ts time.Time, recordID string) string {
	return skPrefixFeedback + sortTime(ts) + "#" + recordID
}

func statusSK(ts time.Time, id string) string {
	return skPrefixStatus + sortTime(ts) + "#" + id
}

func keyOf(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
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

func boolAttr(item map[string]types.AttributeValue, key string) (bool, error) {
	v, ok := item[key]
	if !ok {
		return false, fmt.Errorf("repository: missing attribute %q", key)
	}
	b, ok := v.(*types.AttributeValueMemberBOOL)
	if !ok {
		return false, fmt.Errorf("repository: attribute %q is not a boolean", key)
	}
	return b.Value, nil
}
