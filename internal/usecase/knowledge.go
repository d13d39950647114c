package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"support-agent/internal/domain"
	"support-agent/internal/logging"
)

const fanoutLimit = 4

// SectionStore persists config sections with create-once semantics for
// createdAt.
type SectionStore interface {
	UpsertSection(ctx context.Context, key string, payload any) (domain.ConfigSection, error)
	GetSection(ctx context.Context, key string) (domain.ConfigSection, bool, error)
}

type KnowledgeService struct {
	store SectionStore
}

// UpsertReport describes one UpsertMain call. Subsection failures are
// independent of each other and of Main.
type UpsertReport struct {
	Main        domain.ConfigSection
	Subsections []string
	Failed      map[string]error
}

func NewKnowledgeService(store SectionStore) (*KnowledgeService, error) {
	if store == nil {
		return nil, errors.New("usecase: section store must not be nil")
	}
	return &KnowledgeService{store: store}, nil
}

// UpsertMain writes payload to the "main" section, then projects each
// top-level key into its own section. Only the main write can fail the call.
func (s *KnowledgeService) UpsertMain(ctx context.Context, payload map[string]any) (UpsertReport, error) {
	if payload == nil {
		return UpsertReport{}, newError(ErrorInvalidInput, "nil_payload", nil)
	}
	mainSection, err := s.store.UpsertSection(ctx, domain.MainSectionKey, payload)
	if err != nil {
		return UpsertReport{}, newError(ErrorStorage, "main_section_write_error", err)
	}

	log := logging.FromContext(ctx)
	report := UpsertReport{Main: mainSection, Failed: map[string]error{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(fanoutLimit)
	for _, key := range SubsectionKeys(payload) {
		value := payload[key]
		g.Go(func() error {
			_, err := s.store.UpsertSection(ctx, key, value)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error("failed to write config subsection", "section", key, "err", err)
				report.Failed[key] = err
				return nil
			}
			report.Subsections = append(report.Subsections, key)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Subsections)
	log.Info("knowledge base upserted", "sections", len(report.Subsections), "failed", len(report.Failed))
	return report, nil
}

// GetSection returns a section or an ErrorNotFound/ErrorStorage error.
func (s *KnowledgeService) GetSection(ctx context.Context, key string) (domain.ConfigSection, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ConfigSection{}, newError(ErrorNotFound, "empty_section_key", nil)
	}
	section, ok, err := s.store.GetSection(ctx, key)
	if err != nil {
		return domain.ConfigSection{}, newError(ErrorStorage, "section_read_error", err)
	}
	if !ok {
		return domain.ConfigSection{}, newError(ErrorNotFound, "section_not_found", nil)
	}
	return section, nil
}

// SubsectionKeys lists the sections derived from a main payload in sorted
// order. A top-level "main" key is skipped so it cannot clobber the
// aggregate document.
func SubsectionKeys(payload map[string]any) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if strings.TrimSpace(k) == "" || k == domain.MainSectionKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
