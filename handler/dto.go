package handler

import (
	"time"

	"support-agent/internal/domain"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id,omitempty"`
}

type feedbackRequest struct {
	SessionID     string `json:"session_id"`
	TurnID        string `json:"turn_id"`
	Helpful       *bool  `json:"helpful"`
	NeedsMoreInfo bool   `json:"needs_more_info"`
}

type feedbackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type turnFeedbackDTO struct {
	Helpful       bool      `json:"helpful"`
	NeedsMoreInfo bool      `json:"needs_more_info"`
	FeedbackAt    time.Time `json:"feedback_at"`
}

type turnDTO struct {
	TurnID    string           `json:"turn_id"`
	SessionID string           `json:"session_id"`
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
	Feedback  *turnFeedbackDTO `json:"feedback"`
}

type historyResponse struct {
	SessionID string    `json:"session_id"`
	Messages  []turnDTO `json:"messages"`
}

type statsResponse struct {
	TotalMessages    int     `json:"total_messages"`
	TotalSessions    int     `json:"total_sessions"`
	HelpfulCount     int     `json:"helpful_count"`
	NotHelpfulCount  int     `json:"not_helpful_count"`
	SatisfactionRate float64 `json:"satisfaction_rate"`
}

type sectionResponse struct {
	SectionKey string    `json:"section_key"`
	Payload    any       `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type notFoundResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	SectionKey string `json:"section_key"`
}

type statusRequest struct {
	ClientName string `json:"client_name"`
}

type statusResponse struct {
	ID         string    `json:"id"`
	ClientName string    `json:"client_name"`
	Timestamp  time.Time `json:"timestamp"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toTurnDTOs(turns []domain.Turn) []turnDTO {
	out := make([]turnDTO, 0, len(turns))
	for _, t := range turns {
		dto := turnDTO{
			TurnID:    t.TurnID,
			SessionID: t.SessionID,
			Role:      string(t.Role),
			Content:   t.Content,
			CreatedAt: t.CreatedAt,
		}
		if t.Feedback != nil {
			dto.Feedback = &turnFeedbackDTO{
				Helpful:       t.Feedback.Helpful,
				NeedsMoreInfo: t.Feedback.NeedsMoreInfo,
				FeedbackAt:    t.Feedback.FeedbackAt,
			}
		}
		out = append(out, dto)
	}
	return out
}

func toStatsResponse(s domain.Stats) statsResponse {
	return statsResponse{
		TotalMessages:    s.TotalMessages,
		TotalSessions:    s.TotalSessions,
		HelpfulCount:     s.HelpfulCount,
		NotHelpfulCount:  s.NotHelpfulCount,
		SatisfactionRate: s.SatisfactionRate,
	}
}

func toSectionResponse(s domain.ConfigSection) sectionResponse {
	return sectionResponse{
		SectionKey: s.SectionKey,
		Payload:    s.Payload,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func toStatusResponse(c domain.StatusCheck) statusResponse {
	return statusResponse{ID: c.ID, ClientName: c.ClientName, Timestamp: c.Timestamp}
}
