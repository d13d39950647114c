package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"support-agent/internal/domain"
)

// memStore is an in-memory stand-in for the DynamoDB repository. It keeps
// turns ordered by creation time and preserves createdAt on section upserts.
type memStore struct {
	mu       sync.Mutex
	clock    time.Time
	seq      int
	turns    map[string][]domain.Turn
	records  []domain.FeedbackRecord
	sections map[string]domain.ConfigSection
	checks   []domain.StatusCheck

	appendErr    error
	historyErr   error
	latestErr    error
	setErr       error
	recordErr    error
	sectionErrs  map[string]error
	getErr       error
	countErr     error
	historyCalls []int
}

func newMemStore() *memStore {
	return &memStore{
		clock:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		turns:       map[string][]domain.Turn{},
		sections:    map[string]domain.ConfigSection{},
		sectionErrs: map[string]error{},
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) AppendTurn(_ context.Context, sessionID string, role domain.Role, content string) (domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return domain.Turn{}, m.appendErr
	}
	t := domain.Turn{TurnID: m.nextID("turn"), SessionID: sessionID, Role: role, Content: content, CreatedAt: m.tick()}
	m.turns[sessionID] = append(m.turns[sessionID], t)
	return t, nil
}

func (m *memStore) GetHistory(_ context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyCalls = append(m.historyCalls, limit)
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	all := append([]domain.Turn(nil), m.turns[sessionID]...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	if all == nil {
		all = []domain.Turn{}
	}
	return all, nil
}

func (m *memStore) LatestAssistantTurn(_ context.Context, sessionID string) (domain.Turn, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestErr != nil {
		return domain.Turn{}, false, m.latestErr
	}
	turns := m.turns[sessionID]
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleAssistant {
			return turns[i], true, nil
		}
	}
	return domain.Turn{}, false, nil
}

func (m *memStore) SetTurnFeedback(_ context.Context, turn domain.Turn, fb domain.TurnFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	for i, t := range m.turns[turn.SessionID] {
		if t.TurnID == turn.TurnID {
			fbCopy := fb
			m.turns[turn.SessionID][i].Feedback = &fbCopy
			return nil
		}
	}
	return fmt.Errorf("turn %s not found", turn.TurnID)
}

func (m *memStore) AppendFeedbackRecord(_ context.Context, rec domain.FeedbackRecord) (domain.FeedbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return domain.FeedbackRecord{}, m.recordErr
	}
	rec.RecordID = m.nextID("fb")
	rec.CreatedAt = m.tick()
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *memStore) UpsertSection(_ context.Context, key string, payload any) (domain.ConfigSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.sectionErrs[key]; err != nil {
		return domain.ConfigSection{}, err
	}
	now := m.tick()
	section, ok := m.sections[key]
	if !ok {
		section = domain.ConfigSection{SectionKey: key, CreatedAt: now}
	}
	section.Payload = payload
	section.UpdatedAt = now
	m.sections[key] = section
	return section, nil
}

func (m *memStore) GetSection(_ context.Context, key string) (domain.ConfigSection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return domain.ConfigSection{}, false, m.getErr
	}
	section, ok := m.sections[key]
	return section, ok, nil
}

func (m *memStore) CountUsage(_ context.Context, _ int) (domain.UsageCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return domain.UsageCounts{}, m.countErr
	}
	var c domain.UsageCounts
	for _, turns := range m.turns {
		if len(turns) > 0 {
			c.Sessions++
		}
		c.Turns += len(turns)
	}
	for _, r := range m.records {
		if r.Helpful {
			c.Helpful++
		} else {
			c.NotHelpful++
		}
	}
	return c, nil
}

func (m *memStore) CreateStatusCheck(_ context.Context, clientName string) (domain.StatusCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := domain.StatusCheck{ID: m.nextID("status"), ClientName: clientName, Timestamp: m.tick()}
	m.checks = append(m.checks, c)
	return c, nil
}

func (m *memStore) ListStatusChecks(_ context.Context, limit int) ([]domain.StatusCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]domain.StatusCheck(nil), m.checks...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
