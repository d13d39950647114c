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

type sectionRecord struct {
	PK         string    `dynamodbav:"PK"`
	SK         string    `dynamodbav:"SK"`
	Entity     string    `dynamodbav:"entity"`
	SectionKey string    `dynamodbav:"sectionKey"`
	Payload    any       `dynamodbav:"payload"`
	CreatedAt  time.Time `dynamodbav:"createdAt"`
	UpdatedAt  time.Time `dynamodbav:"updatedAt"`
}

// upsertSectionExpression keeps the first createdAt and refreshes the rest.
const upsertSectionExpression = "SET #entity = :entity, #sectionKey = :key, #payload = :payload, " +
	"#updatedAt = :now, #createdAt = if_not_exists(#createdAt, :now)"

// UpsertSection writes payload under key, preserving the original createdAt
// on repeat writes. It returns the section as stored.
func (c *Client) UpsertSection(ctx context.Context, key string, payload any) (domain.ConfigSection, error) {
	if strings.TrimSpace(key) == "" {
		return domain.ConfigSection{}, errors.New("repository: UpsertSection: section key is required")
	}
	payloadAV, err := attributevalue.Marshal(payload)
	if err != nil {
		return domain.ConfigSection{}, fmt.Errorf("repository: UpsertSection marshal payload: %w", err)
	}
	nowAV, err := attributevalue.Marshal(nowUTC())
	if err != nil {
		return domain.ConfigSection{}, fmt.Errorf("repository: UpsertSection marshal time: %w", err)
	}

	out, err := c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(c.tableName),
		Key:              keyOf(configPK(key), skSection),
		UpdateExpression: aws.String(upsertSectionExpression),
		ExpressionAttributeNames: map[string]string{
			"#entity":     "entity",
			"#sectionKey": "sectionKey",
			"#payload":    "payload",
			"#updatedAt":  "updatedAt",
			"#createdAt":  "createdAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":entity":  &types.AttributeValueMemberS{Value: entityConfig},
			":key":     &types.AttributeValueMemberS{Value: key},
			":payload": payloadAV,
			":now":     nowAV,
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return domain.ConfigSection{}, fmt.Errorf("repository: UpsertSection %q: %w", key, err)
	}
	if out == nil || len(out.Attributes) == 0 {
		return domain.ConfigSection{}, fmt.Errorf("repository: UpsertSection %q: empty response", key)
	}
	section, err := itemToSection(out.Attributes)
	if err != nil {
		return domain.ConfigSection{}, fmt.Errorf("repository: UpsertSection %q unmarshal: %w", key, err)
	}
	return section, nil
}

// GetSection reads one section. The boolean is false when the key is unknown.
func (c *Client) GetSection(ctx context.Context, key string) (domain.ConfigSection, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            keyOf(configPK(key), skSection),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ConfigSection{}, false, fmt.Errorf("repository: GetSection get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ConfigSection{}, false, nil
	}
	section, err := itemToSection(out.Item)
	if err != nil {
		return domain.ConfigSection{}, false, fmt.Errorf("repository: GetSection unmarshal: %w", err)
	}
	return section, true, nil
}

func itemToSection(item map[string]types.AttributeValue) (domain.ConfigSection, error) {
	var rec sectionRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return domain.ConfigSection{}, err
	}
	if rec.SectionKey == "" {
		return domain.ConfigSection{}, fmt.Errorf("repository: missing attribute %q", "sectionKey")
	}
	return domain.ConfigSection{
		SectionKey: rec.SectionKey,
		Payload:    rec.Payload,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}, nil
}
