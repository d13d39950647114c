package usecase

import (
	"context"
	"errors"

	"support-agent/internal/domain"
	"support-agent/internal/logging"
)

// FeedbackStore covers both feedback writes: the annotation on the latest
// assistant turn and the append-only analytics record.
type FeedbackStore interface {
	LatestAssistantTurn(ctx context.Context, sessionID string) (domain.Turn, bool, error)
	SetTurnFeedback(ctx context.Context, turn domain.Turn, fb domain.TurnFeedback) error
	AppendFeedbackRecord(ctx context.Context, rec domain.FeedbackRecord) (domain.FeedbackRecord, error)
}

type FeedbackService struct {
	store FeedbackStore
}

type FeedbackInput struct {
	SessionID     string
	TurnID        string
	Helpful       bool
	NeedsMoreInfo bool
}

type FeedbackOutput struct {
	// AttachedTurnID is the assistant turn that received the annotation, if any.
	AttachedTurnID string
	RecordID       string
}

func NewFeedbackService(store FeedbackStore) (*FeedbackService, error) {
	if store == nil {
		return nil, errors.New("usecase: feedback store must not be nil")
	}
	return &FeedbackService{store: store}, nil
}

// RecordFeedback attaches feedback to the session's latest assistant turn
// and appends an analytics record. The caller's TurnID does not pick the
// target turn; it is only kept on the record. Both writes are always
// attempted; a failure in either is reported as ErrorStorage.
func (s *FeedbackService) RecordFeedback(ctx context.Context, in FeedbackInput) (FeedbackOutput, error) {
	if in.SessionID == "" {
		return FeedbackOutput{}, newError(ErrorInvalidInput, "empty_session_id", nil)
	}
	log := logging.FromContext(ctx).With("session_id", in.SessionID)

	var out FeedbackOutput
	attachedTurnID, attachErr := s.attachToLatestTurn(ctx, in)
	if attachErr != nil {
		log.Error("failed to attach feedback to turn", "err", attachErr)
	}
	out.AttachedTurnID = attachedTurnID

	rec, recordErr := s.store.AppendFeedbackRecord(ctx, domain.FeedbackRecord{
		SessionID:     in.SessionID,
		TurnID:        in.TurnID,
		Helpful:       in.Helpful,
		NeedsMoreInfo: in.NeedsMoreInfo,
	})
	if recordErr != nil {
		log.Error("failed to append feedback record", "err", recordErr)
	} else {
		out.RecordID = rec.RecordID
	}

	if err := errors.Join(attachErr, recordErr); err != nil {
		return out, newError(ErrorStorage, "feedback_write_error", err)
	}
	if attachedTurnID != "" && in.TurnID != "" && attachedTurnID != in.TurnID {
		log.Info("feedback attached to newer assistant turn", "requested_turn_id", in.TurnID, "turn_id", attachedTurnID)
	}
	return out, nil
}

func (s *FeedbackService) attachToLatestTurn(ctx context.Context, in FeedbackInput) (string, error) {
	turn, ok, err := s.store.LatestAssistantTurn(ctx, in.SessionID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	err = s.store.SetTurnFeedback(ctx, turn, domain.TurnFeedback{
		Helpful:       in.Helpful,
		NeedsMoreInfo: in.NeedsMoreInfo,
		FeedbackAt:    nowUTC(),
	})
	if err != nil {
		return "", err
	}
	return turn.TurnID, nil
}
