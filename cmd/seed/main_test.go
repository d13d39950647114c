package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-agent/internal/domain"
	"support-agent/internal/usecase"
)

type fakeSectionStore struct {
	mu      sync.Mutex
	written map[string]any
	failKey string
}

func (f *fakeSectionStore) UpsertSection(_ context.Context, key string, payload any) (domain.ConfigSection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == f.failKey {
		return domain.ConfigSection{}, errors.New("throttled")
	}
	f.written[key] = payload
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.ConfigSection{SectionKey: key, Payload: payload, CreatedAt: now, UpdatedAt: now}, nil
}

func (f *fakeSectionStore) GetSection(context.Context, string) (domain.ConfigSection, bool, error) {
	return domain.ConfigSection{}, false, nil
}

func factoryFor(store *fakeSectionStore, gotTable *string) storeFactory {
	return func(_ context.Context, table string) (usecase.SectionStore, error) {
		*gotTable = table
		return store, nil
	}
}

func TestSeed_DryRunListsSections(t *testing.T) {
	var table string
	store := &fakeSectionStore{written: map[string]any{}}
	cmd := newRootCommand(factoryFor(store, &table))
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--dry-run"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), `would write section "main"`)
	require.Contains(t, out.String(), `would write section "chatbot"`)
	require.Empty(t, store.written)
	require.Empty(t, table)
}

func TestSeed_WritesFileSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("contact:\n  phone: 301-206-4001\nchatbot:\n  enabled: true\n"), 0o600))

	var table string
	store := &fakeSectionStore{written: map[string]any{}}
	cmd := newRootCommand(factoryFor(store, &table))
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"--table", "support-state", "--file", path})

	require.NoError(t, cmd.Execute())
	require.Equal(t, "support-state", table)
	require.Len(t, store.written, 3)
	require.Equal(t, map[string]any{"phone": "301-206-4001"}, store.written["contact"])
	require.Contains(t, out.String(), `wrote section "contact"`)
}

func TestSeed_ReportsSubsectionFailures(t *testing.T) {
	var table string
	store := &fakeSectionStore{written: map[string]any{}, failKey: "contact"}
	err := runSeed(context.Background(), &bytes.Buffer{}, seedOptions{table: "t"}, factoryFor(store, &table))
	require.ErrorContains(t, err, "contact: throttled")
	require.Contains(t, store.written, "chatbot")
}

func TestSeed_Errors(t *testing.T) {
	var table string
	store := &fakeSectionStore{written: map[string]any{}}

	err := runSeed(context.Background(), &bytes.Buffer{}, seedOptions{}, factoryFor(store, &table))
	require.ErrorContains(t, err, "--table")

	err = runSeed(context.Background(), &bytes.Buffer{}, seedOptions{table: "t", file: "/does/not/exist.yaml"}, factoryFor(store, &table))
	require.ErrorContains(t, err, "open")

	failing := func(context.Context, string) (usecase.SectionStore, error) { return nil, errors.New("no creds") }
	err = runSeed(context.Background(), &bytes.Buffer{}, seedOptions{table: "t"}, failing)
	require.ErrorContains(t, err, "no creds")
}
