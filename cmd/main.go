package main

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"support-agent/handler"
	"support-agent/internal/integrations/anthropic"
	"support-agent/internal/integrations/paramstore"
	"support-agent/internal/knowledgebase"
	"support-agent/internal/logging"
	"support-agent/internal/repository"
	"support-agent/internal/usecase"
)

const seedTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	logging.SetLogger(logging.New(os.Stdout, logging.ParseLevel(os.Getenv("LOG_LEVEL"))))
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	maxContextItems := envInt("MAX_CONTEXT_ITEMS", 20)
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 2000)
	scanSegments := envInt("STATS_SCAN_SEGMENTS", 4)
	seedOnStart := envBool("SEED_ON_START", true)
	corsOrigins := strings.Split(envString("CORS_ORIGINS", "*"), ",")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		fatal("failed to create SSM client", err)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		fatal("failed to create repository", err)
	}
	assistant, err := anthropic.NewClient(ssmClient, paramPrefix)
	if err != nil {
		fatal("failed to create Anthropic client", err)
	}

	// ---- Services ----
	chatService, err := usecase.NewChatService(store, assistant, maxContextItems, maxMessageLen)
	if err != nil {
		fatal("failed to create chat service", err)
	}
	feedbackService, err := usecase.NewFeedbackService(store)
	if err != nil {
		fatal("failed to create feedback service", err)
	}
	knowledgeService, err := usecase.NewKnowledgeService(store)
	if err != nil {
		fatal("failed to create knowledge service", err)
	}
	statsService, err := usecase.NewStatsService(store, scanSegments)
	if err != nil {
		fatal("failed to create stats service", err)
	}
	statusService, err := usecase.NewStatusService(store)
	if err != nil {
		fatal("failed to create status service", err)
	}

	if seedOnStart {
		seedKnowledgeBase(ctx, knowledgeService)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(handler.Services{
		Chat:      chatService,
		Feedback:  feedbackService,
		Knowledge: knowledgeService,
		Stats:     statsService,
		Status:    statusService,
	}, handler.WithAllowedOrigins(corsOrigins))
	if err != nil {
		fatal("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}

// seedKnowledgeBase upserts the embedded knowledge base once per cold start.
// Failures are logged; the function still serves requests.
func seedKnowledgeBase(ctx context.Context, svc *usecase.KnowledgeService) {
	log := logging.Logger()
	doc, err := knowledgebase.Default()
	if err != nil {
		log.Error("failed to load embedded knowledge base", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, seedTimeout)
	defer cancel()
	report, err := svc.UpsertMain(ctx, doc)
	if err != nil {
		log.Error("failed to seed knowledge base", "err", err)
		return
	}
	log.Info("knowledge base seeded", "sections", report.Subsections, "failed", len(report.Failed))
}

func fatal(msg string, err error) {
	logging.Logger().Error(msg, "err", err)
	os.Exit(1)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		logging.Logger().Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
