package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"support-agent/internal/domain"
)

type feedbackRecord struct {
	PK            string    `dynamodbav:"PK"`
	SK            string    `dynamodbav:"SK"`
	Entity        string    `dynamodbav:"entity"`
	RecordID      string    `dynamodbav:"recordId"`
	SessionID     string    `dynamodbav:"sessionId"`
	TurnID        string    `dynamodbav:"turnId"`
	Helpful       bool      `dynamodbav:"helpful"`
	NeedsMoreInfo bool      `dynamodbav:"needsMoreInfo"`
	CreatedAt     time.Time `dynamodbav:"createdAt"`
}

// AppendFeedbackRecord writes one immutable analytics record. Every call
// produces a new item.
func (c *Client) AppendFeedbackRecord(ctx context.Context, rec domain.FeedbackRecord) (domain.FeedbackRecord, error) {
	if rec.SessionID == "" {
		return domain.FeedbackRecord{}, errors.New("repository: AppendFeedbackRecord: session id is required")
	}
	rec.RecordID = newID()
	rec.CreatedAt = nowUTC()

	item, err := attributevalue.MarshalMap(feedbackRecord{
		PK:            feedbackPK(rec.SessionID),
		SK:            feedbackSK(rec.CreatedAt, rec.RecordID),
		Entity:        entityFeedback,
		RecordID:      rec.RecordID,
		SessionID:     rec.SessionID,
		TurnID:        rec.TurnID,
		Helpful:       rec.Helpful,
		NeedsMoreInfo: rec.NeedsMoreInfo,
		CreatedAt:     rec.CreatedAt,
	})
	if err != nil {
		return domain.FeedbackRecord{}, fmt.Errorf("repository: AppendFeedbackRecord marshal: %w", err)
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String(appendOnlyCondition),
	})
	if err != nil {
		return domain.FeedbackRecord{}, fmt.Errorf("repository: AppendFeedbackRecord: %w", err)
	}
	return rec, nil
}
