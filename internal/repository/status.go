package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"support-agent/internal/domain"
)

type statusRecord struct {
	PK         string    `dynamodbav:"PK"`
	SK         string    `dynamodbav:"SK"`
	Entity     string    `dynamodbav:"entity"`
	ID         string    `dynamodbav:"id"`
	ClientName string    `dynamodbav:"clientName"`
	Timestamp  time.Time `dynamodbav:"timestamp"`
}

// CreateStatusCheck records a client ping.
func (c *Client) CreateStatusCheck(ctx context.Context, clientName string) (domain.StatusCheck, error) {
	if strings.TrimSpace(clientName) == "" {
		return domain.StatusCheck{}, errors.New("repository: CreateStatusCheck: client name is required")
	}
	check := domain.StatusCheck{ID: newID(), ClientName: clientName, Timestamp: nowUTC()}
	item, err := attributevalue.MarshalMap(statusRecord{
		PK:         pkStatus,
		SK:         statusSK(check.Timestamp, check.ID),
		Entity:     entityStatus,
		ID:         check.ID,
		ClientName: check.ClientName,
		Timestamp:  check.Timestamp,
	})
	if err != nil {
		return domain.StatusCheck{}, fmt.Errorf("repository: CreateStatusCheck marshal: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String(appendOnlyCondition),
	})
	if err != nil {
		return domain.StatusCheck{}, fmt.Errorf("repository: CreateStatusCheck: %w", err)
	}
	return check, nil
}

const maxStatusChecks = 1000

// ListStatusChecks returns up to limit status checks, oldest first.
func (c *Client) ListStatusChecks(ctx context.Context, limit int) ([]domain.StatusCheck, error) {
	if limit <= 0 || limit > maxStatusChecks {
		limit = maxStatusChecks
	}
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pkStatus},
		},
		ScanIndexForward: aws.Bool(true),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListStatusChecks query: %w", err)
	}
	checks := make([]domain.StatusCheck, 0, len(out.Items))
	for _, item := range out.Items {
		var rec statusRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("repository: ListStatusChecks unmarshal: %w", err)
		}
		checks = append(checks, domain.StatusCheck{ID: rec.ID, ClientName: rec.ClientName, Timestamp: rec.Timestamp})
	}
	return checks, nil
}
