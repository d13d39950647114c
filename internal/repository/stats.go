package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"golang.org/x/sync/errgroup"

	"support-agent/internal/domain"
)

const defaultScanSegments = 4

// usageTally accumulates counters for one scan segment.
type usageTally struct {
	turns      int
	helpful    int
	notHelpful int
	sessions   map[string]struct{}
}

// CountUsage scans the table in parallel segments and counts turns, distinct
// sessions with at least one turn, and feedback records by helpfulness.
// The result is a point-in-time read per segment, not a transaction.
func (c *Client) CountUsage(ctx context.Context, segments int) (domain.UsageCounts, error) {
	if segments <= 0 {
		segments = defaultScanSegments
	}

	var (
		mu       sync.Mutex
		total    domain.UsageCounts
		sessions = make(map[string]struct{})
	)

	g, gctx := errgroup.WithContext(ctx)
	for seg := 0; seg < segments; seg++ {
		g.Go(func() error {
			tally, err := c.scanSegment(gctx, int32(seg), int32(segments))
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			total.Turns += tally.turns
			total.Helpful += tally.helpful
			total.NotHelpful += tally.notHelpful
			for id := range tally.sessions {
				sessions[id] = struct{}{}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.UsageCounts{}, fmt.Errorf("repository: CountUsage: %w", err)
	}
	total.Sessions = len(sessions)
	return total, nil
}

func (c *Client) scanSegment(ctx context.Context, segment, totalSegments int32) (usageTally, error) {
	tally := usageTally{sessions: make(map[string]struct{})}
	pages := dynamodb.NewScanPaginator(c.api, &dynamodb.ScanInput{
		TableName:            aws.String(c.tableName),
		ProjectionExpression: aws.String("#entity, sessionId, helpful"),
		ExpressionAttributeNames: map[string]string{
			"#entity": "entity",
		},
		Segment:       aws.Int32(segment),
		TotalSegments: aws.Int32(totalSegments),
	})
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return usageTally{}, fmt.Errorf("scan segment %d: %w", segment, err)
		}
		for _, item := range out.Items {
			entity, err := strAttr(item, "entity")
			if err != nil {
				continue
			}
			switch entity {
			case entityTurn:
				tally.turns++
				if id, err := strAttr(item, "sessionId"); err == nil {
					tally.sessions[id] = struct{}{}
				}
			case entityFeedback:
				helpful, err := boolAttr(item, "helpful")
				if err != nil {
					return usageTally{}, fmt.Errorf("scan segment %d: %w", segment, err)
				}
				if helpful {
					tally.helpful++
				} else {
					tally.notHelpful++
				}
			}
		}
	}
	return tally, nil
}
