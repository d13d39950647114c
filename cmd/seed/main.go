// Command seed loads a knowledge-base YAML file and upserts it as the "main"
// config section and its subsections.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"support-agent/internal/knowledgebase"
	"support-agent/internal/repository"
	"support-agent/internal/usecase"
)

type seedOptions struct {
	table  string
	file   string
	dryRun bool
}

// storeFactory builds the section store for a table.
type storeFactory func(ctx context.Context, table string) (usecase.SectionStore, error)

func main() {
	if err := newRootCommand(dynamoStore).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(newStore storeFactory) *cobra.Command {
	opts := seedOptions{}
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Upsert the support knowledge base into the state table",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd.Context(), cmd.OutOrStdout(), opts, newStore)
		},
	}
	cmd.Flags().StringVarP(&opts.table, "table", "t", os.Getenv("STATE_TABLE"), "DynamoDB table name (defaults to $STATE_TABLE)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Knowledge-base YAML file (defaults to the embedded document)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the sections that would be written without writing them")
	return cmd
}

func runSeed(ctx context.Context, out io.Writer, opts seedOptions, newStore storeFactory) error {
	if ctx == nil {
		ctx = context.Background()
	}
	doc, err := loadDocument(opts.file)
	if err != nil {
		return err
	}

	keys := usecase.SubsectionKeys(doc)
	if opts.dryRun {
		_, _ = fmt.Fprintf(out, "would write section %q\n", "main")
		for _, k := range keys {
			_, _ = fmt.Fprintf(out, "would write section %q\n", k)
		}
		return nil
	}

	if strings.TrimSpace(opts.table) == "" {
		return errors.New("seed: --table or STATE_TABLE is required")
	}
	store, err := newStore(ctx, opts.table)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	svc, err := usecase.NewKnowledgeService(store)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	report, err := svc.UpsertMain(ctx, doc)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	_, _ = fmt.Fprintf(out, "wrote section %q (created %s, updated %s)\n", report.Main.SectionKey,
		report.Main.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), report.Main.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	for _, k := range report.Subsections {
		_, _ = fmt.Fprintf(out, "wrote section %q\n", k)
	}
	if len(report.Failed) > 0 {
		failed := make([]string, 0, len(report.Failed))
		for _, k := range keys {
			if err, ok := report.Failed[k]; ok {
				failed = append(failed, fmt.Sprintf("%s: %v", k, err))
			}
		}
		return fmt.Errorf("seed: %d subsection(s) failed: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

func loadDocument(path string) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return knowledgebase.Default()
	}
	return knowledgebase.LoadFile(path)
}

func dynamoStore(ctx context.Context, table string) (usecase.SectionStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), table)
	if err != nil {
		return nil, err
	}
	return store, nil
}
