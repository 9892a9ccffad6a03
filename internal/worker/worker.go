// Package worker provides async analysis refresh for recorded transactions.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/metapayd/cardwise/internal/domain"
	"github.com/metapayd/cardwise/internal/insights"
)

// Worker recomputes spending analyses when transactions are recorded.
// It subscribes per user, rebuilds the analysis from the repository, caches
// the result, and announces completion on the bus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	analyzer *insights.Analyzer

	window      time.Duration
	analysisTTL time.Duration

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// UserIDs is the list of users to process.
	UserIDs []string

	// Window bounds how far back transactions feed the analysis.
	Window time.Duration

	// AnalysisTTL is how long refreshed analyses stay cached.
	AnalysisTTL time.Duration
}

// NewWorker creates a new async worker.
func NewWorker(eventBus domain.EventBus, repo domain.Repository, cache domain.Cache, analyzer *insights.Analyzer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      eventBus,
		repo:     repo,
		cache:    cache,
		analyzer: analyzer,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing messages for the given users.
func (w *Worker) Start(cfg Config) error {
	w.window = cfg.Window
	if w.window <= 0 {
		w.window = 30 * 24 * time.Hour
	}
	w.analysisTTL = cfg.AnalysisTTL
	if w.analysisTTL <= 0 {
		w.analysisTTL = 15 * time.Minute
	}

	for _, userID := range cfg.UserIDs {
		if err := w.startUserWorker(userID); err != nil {
			slog.Error("failed to start worker for user",
				"user_id", userID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"user_count", len(cfg.UserIDs),
	)

	return nil
}

// startUserWorker subscribes to recorded transactions for one user.
func (w *Worker) startUserWorker(userID string) error {
	sub, err := w.bus.Subscribe(w.ctx, userID, domain.TopicTransactionRecorded, func(ctx context.Context, msg *domain.Message) error {
		return w.refreshAnalysis(ctx, userID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("user worker started",
		"user_id", userID,
		"topic", domain.TopicTransactionRecorded,
	)

	return nil
}

// TransactionMessage is the message payload announcing a recorded transaction.
type TransactionMessage struct {
	TxID   string  `json:"txId"`
	UserID string  `json:"userId"`
	MCC    string  `json:"mcc"`
	CardID string  `json:"cardId"`
	Amount float64 `json:"amount"`
}

// refreshAnalysis rebuilds and caches the user's spending analysis.
func (w *Worker) refreshAnalysis(ctx context.Context, userID string, msg *domain.Message) error {
	start := time.Now()

	var txMsg TransactionMessage
	if err := json.Unmarshal(msg.Payload, &txMsg); err != nil {
		slog.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message user if provided
	if txMsg.UserID != "" {
		userID = txMsg.UserID
	}

	slog.Debug("refreshing analysis",
		"tx_id", txMsg.TxID,
		"user_id", userID,
	)

	since := time.Now().UTC().Add(-w.window)
	transactions, err := w.repo.ListTransactions(ctx, userID, since)
	if err != nil {
		slog.Error("failed to load transactions",
			"user_id", userID,
			"error", err,
		)
		return err
	}

	cards, err := w.repo.ListCards(ctx, userID)
	if err != nil {
		slog.Error("failed to load cards",
			"user_id", userID,
			"error", err,
		)
		return err
	}

	analysis := w.analyzer.Analyze(transactions, cards)

	if w.cache != nil {
		if err := w.cache.SetAnalysis(ctx, userID, analysis, w.analysisTTL); err != nil {
			slog.Error("failed to cache analysis",
				"user_id", userID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(analysis)
	if err := w.bus.Publish(ctx, userID, domain.TopicAnalysisCompleted, resultPayload); err != nil {
		slog.Error("failed to publish analysis",
			"user_id", userID,
			"error", err,
		)
	}

	slog.Info("analysis refreshed",
		"tx_id", txMsg.TxID,
		"user_id", userID,
		"transaction_count", len(transactions),
		"optimization_rate", analysis.OptimizationRate,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
