package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"support-agent/internal/domain"
)

// latestAssistantPageSize bounds each page read while walking a session
// backwards for its newest assistant turn.
const latestAssistantPageSize = 25

// maxHistoryLimit caps a bounded history read.
const maxHistoryLimit = 1000

type turnRecord struct {
	PK        string        `dynamodbav:"PK"`
	SK        string        `dynamodbav:"SK"`
	Entity    string        `dynamodbav:"entity"`
	TurnID    string        `dynamodbav:"turnId"`
	SessionID string        `dynamodbav:"sessionId"`
	Role      string        `dynamodbav:"role"`
	Content   string        `dynamodbav:"content"`
	CreatedAt time.Time     `dynamodbav:"createdAt"`
	Feedback  *feedbackAttr `dynamodbav:"feedback,omitempty"`
}

type feedbackAttr struct {
	Helpful       bool      `dynamodbav:"helpful"`
	NeedsMoreInfo bool      `dynamodbav:"needsMoreInfo"`
	FeedbackAt    time.Time `dynamodbav:"feedbackAt"`
}

// AppendTurn persists a new turn with a fresh id and the current time.
// Turns are never overwritten.
func (c *Client) AppendTurn(ctx context.Context, sessionID string, role domain.Role, content string) (domain.Turn, error) {
	if sessionID == "" {
		return domain.Turn{}, errors.New("repository: AppendTurn: session id is required")
	}
	if !role.Valid() {
		return domain.Turn{}, fmt.Errorf("repository: AppendTurn: invalid role %q", role)
	}

	turn := domain.Turn{
		TurnID:    newID(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: nowUTC(),
	}
	item, err := attributevalue.MarshalMap(toTurnRecord(turn))
	if err != nil {
		return domain.Turn{}, fmt.Errorf("repository: AppendTurn marshal: %w", err)
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                item,
		ConditionExpression: aws.String(appendOnlyCondition),
	})
	if err != nil {
		return domain.Turn{}, fmt.Errorf("repository: AppendTurn: %w", err)
	}
	return turn, nil
}

// GetHistory returns a session's turns in chronological order. A positive
// limit keeps only the most recent limit turns.
func (c *Client) GetHistory(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		ConsistentRead: aws.Bool(true),
	}

	if limit > 0 {
		limit = min(limit, maxHistoryLimit)
		// Read newest first so LIMIT favors the most recent turns.
		in.ScanIndexForward = aws.Bool(false)
		in.Limit = aws.Int32(int32(limit))
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory query: %w", err)
		}
		turns, err := itemsToTurns(out.Items)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
			turns[i], turns[j] = turns[j], turns[i]
		}
		return turns, nil
	}

	in.ScanIndexForward = aws.Bool(true)
	turns := make([]domain.Turn, 0)
	pages := dynamodb.NewQueryPaginator(c.api, in)
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory query: %w", err)
		}
		page, err := itemsToTurns(out.Items)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		turns = append(turns, page...)
	}
	return turns, nil
}

// LatestAssistantTurn returns the newest assistant turn of a session. The
// boolean is false when the session has no assistant turn.
func (c *Client) LatestAssistantTurn(ctx context.Context, sessionID string) (domain.Turn, bool, error) {
	pages := dynamodb.NewQueryPaginator(c.api, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		FilterExpression:       aws.String("#role = :role"),
		ExpressionAttributeNames: map[string]string{
			"#role": "role",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
			":role":   &types.AttributeValueMemberS{Value: string(domain.RoleAssistant)},
		},
		ScanIndexForward: aws.Bool(false),
		ConsistentRead:   aws.Bool(true),
		Limit:            aws.Int32(latestAssistantPageSize),
	})
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return domain.Turn{}, false, fmt.Errorf("repository: LatestAssistantTurn query: %w", err)
		}
		if len(out.Items) == 0 {
			continue
		}
		turn, err := itemToTurn(out.Items[0])
		if err != nil {
			return domain.Turn{}, false, fmt.Errorf("repository: LatestAssistantTurn unmarshal: %w", err)
		}
		return turn, true, nil
	}
	return domain.Turn{}, false, nil
}

// SetTurnFeedback replaces the feedback annotation of an existing turn.
func (c *Client) SetTurnFeedback(ctx context.Context, turn domain.Turn, fb domain.TurnFeedback) error {
	if turn.SessionID == "" || turn.TurnID == "" {
		return errors.New("repository: SetTurnFeedback: session id and turn id are required")
	}
	av, err := attributevalue.Marshal(feedbackAttr{
		Helpful:       fb.Helpful,
		NeedsMoreInfo: fb.NeedsMoreInfo,
		FeedbackAt:    fb.FeedbackAt,
	})
	if err != nil {
		return fmt.Errorf("repository: SetTurnFeedback marshal: %w", err)
	}

	_, err = c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(c.tableName),
		Key:                 keyOf(sessionPK(turn.SessionID), turnSK(turn.CreatedAt, turn.TurnID)),
		UpdateExpression:    aws.String("SET feedback = :fb"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":fb": av,
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SetTurnFeedback: %w", err)
	}
	return nil
}

func toTurnRecord(t domain.Turn) turnRecord {
	rec := turnRecord{
		PK:        sessionPK(t.SessionID),
		SK:        turnSK(t.CreatedAt, t.TurnID),
		Entity:    entityTurn,
		TurnID:    t.TurnID,
		SessionID: t.SessionID,
		Role:      string(t.Role),
		Content:   t.Content,
		CreatedAt: t.CreatedAt,
	}
	if t.Feedback != nil {
		rec.Feedback = &feedbackAttr{
			Helpful:       t.Feedback.Helpful,
			NeedsMoreInfo: t.Feedback.NeedsMoreInfo,
			FeedbackAt:    t.Feedback.FeedbackAt,
		}
	}
	return rec
}

func itemsToTurns(items []map[string]types.AttributeValue) ([]domain.Turn, error) {
	turns := make([]domain.Turn, 0, len(items))
	for _, item := range items {
		t, err := itemToTurn(item)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// itemToTurn converts a DynamoDB attribute map to a Turn.
func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	var rec turnRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return domain.Turn{}, err
	}
	if rec.TurnID == "" {
		return domain.Turn{}, fmt.Errorf("repository: missing attribute %q", "turnId")
	}
	role := domain.Role(rec.Role)
	if !role.Valid() {
		return domain.Turn{}, fmt.Errorf("repository: invalid role %q", rec.Role)
	}

	turn := domain.Turn{
		TurnID:    rec.TurnID,
		SessionID: rec.SessionID,
		Role:      role,
		Content:   rec.Content,
		CreatedAt: rec.CreatedAt,
	}
	if rec.Feedback != nil {
		turn.Feedback = &domain.TurnFeedback{
			Helpful:       rec.Feedback.Helpful,
			NeedsMoreInfo: rec.Feedback.NeedsMoreInfo,
			FeedbackAt:    rec.Feedback.FeedbackAt,
		}
	}
	return turn, nil
}
