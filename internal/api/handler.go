package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/metapayd/cardwise/internal/catalog"
	"github.com/metapayd/cardwise/internal/domain"
	"github.com/metapayd/cardwise/internal/engine"
	"github.com/metapayd/cardwise/internal/insights"
	"github.com/metapayd/cardwise/internal/repository"
)

// analysisWindow bounds how far back transactions feed the on-demand
// spending analysis.
const analysisWindow = 30 * 24 * time.Hour

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *engine.Engine
	policies *engine.PolicySet
	analyzer *insights.Analyzer
	catalog  *catalog.Catalog

	analysisTTL time.Duration
	version     string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, policies *engine.PolicySet, analyzer *insights.Analyzer, cat *catalog.Catalog, insightsCfg domain.InsightsConfig, version string) *Handler {
	ttl := time.Duration(insightsCfg.AnalysisTTL) * time.Second
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Handler{
		repo:        repo,
		cache:       cache,
		bus:         bus,
		engine:      eng,
		policies:    policies,
		analyzer:    analyzer,
		catalog:     cat,
		analysisTTL: ttl,
		version:     version,
	}
}

// RecommendRequest is the request body for POST /recommendations.
type RecommendRequest struct {
	MCC         string             `json:"mcc"`
	Amount      float64            `json:"amount"`
	Preferences domain.Preferences `json:"preferences,omitempty"`
}

// RecommendResponse is the response for POST /recommendations.
type RecommendResponse struct {
	RecommendationID string                 `json:"recommendationId"`
	Recommendation   *domain.Recommendation `json:"recommendation"`
	ReasonText       string                 `json:"reasonText"`
	Metadata         struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Recommend handles POST /recommendations requests.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	userID := GetUserID(ctx)
	traceID := GetTraceID(ctx)

	// Parse request
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate required fields
	if req.MCC == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "mcc is required",
		})
		return
	}
	if req.Amount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be non-negative",
		})
		return
	}

	cards, err := h.repo.ListCards(ctx, userID)
	if err != nil {
		slog.Error("failed to list cards", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load cards",
		})
		return
	}

	rec, err := h.engine.Recommend(cards, req.MCC, req.Amount, req.Preferences)
	if err != nil {
		if errors.Is(err, engine.ErrNoActiveCards) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": "no active cards available",
			})
			return
		}
		if errors.Is(err, engine.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("recommendation failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "recommendation failed",
		})
		return
	}

	// Persist for later retrieval
	record := &domain.RecommendationRecord{
		ID:               uuid.New().String(),
		UserID:           userID,
		MCC:              req.MCC,
		Amount:           req.Amount,
		CardID:           rec.Recommended.Card.ID,
		CardName:         rec.Recommended.Card.Name,
		ExpectedReward:   rec.Recommended.Reward,
		RewardRate:       rec.Recommended.Rate,
		PotentialSavings: rec.PotentialSavings,
		Category:         rec.Category,
		Reasons:          rec.Reasons,
		CreatedAt:        time.Now().UTC(),
	}

	if err := h.repo.SaveRecommendation(ctx, userID, record); err != nil {
		slog.Error("failed to save recommendation", "user_id", userID, "error", err)
	}

	payload, _ := json.Marshal(record)
	if err := h.bus.Publish(ctx, userID, domain.TopicRecommendationCreated, payload); err != nil {
		slog.Error("failed to publish recommendation", "user_id", userID, "error", err)
	}

	resp := RecommendResponse{
		RecommendationID: record.ID,
		Recommendation:   rec,
		ReasonText:       rec.ReasonText(),
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// GetRecommendation retrieves a persisted recommendation by ID.
func (h *Handler) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)
	recID := chi.URLParam(r, "id")

	rec, err := h.repo.GetRecommendation(ctx, userID, recID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get recommendation", "id", recID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "recommendation not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// CardRequest is the request body for POST /cards.
type CardRequest struct {
	Name        string               `json:"name"`
	Network     string               `json:"network"`
	LastFour    string               `json:"lastFour,omitempty"`
	Active      *bool                `json:"active,omitempty"`
	Balance     float64              `json:"balance"`
	CreditLimit float64              `json:"creditLimit"`
	AnnualFee   float64              `json:"annualFee"`
	Rewards     domain.RewardProgram `json:"rewards"`
}

// ListCards returns the user's cards in creation order.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	cards, err := h.repo.ListCards(ctx, userID)
	if err != nil {
		slog.Error("failed to list cards", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load cards",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cards": cards,
		"count": len(cards),
	})
}

// CreateCard adds a card to the user's wallet.
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	var req CardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name is required",
		})
		return
	}

	// New cards are active unless explicitly disabled.
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	card := &domain.Card{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        req.Name,
		Network:     req.Network,
		LastFour:    req.LastFour,
		Active:      active,
		Balance:     req.Balance,
		CreditLimit: req.CreditLimit,
		AnnualFee:   req.AnnualFee,
		Rewards:     req.Rewards,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.repo.SaveCard(ctx, userID, card); err != nil {
		slog.Error("failed to save card", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save card",
		})
		return
	}

	payload, _ := json.Marshal(card)
	if err := h.bus.Publish(ctx, userID, domain.TopicCardUpdated, payload); err != nil {
		slog.Error("failed to publish card update", "user_id", userID, "error", err)
	}

	slog.Info("card created", "user_id", userID, "card_id", card.ID)
	writeJSON(w, http.StatusCreated, card)
}

// GetCard retrieves a single card from the user's wallet.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)
	cardID := chi.URLParam(r, "id")

	card, err := h.repo.GetCard(ctx, userID, cardID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get card", "id", cardID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "card not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, card)
}

// ListTransactions returns the user's recent transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	since := time.Now().UTC().Add(-analysisWindow)
	transactions, err := h.repo.ListTransactions(ctx, userID, since)
	if err != nil {
		slog.Error("failed to list transactions", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load transactions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// RecordTransaction stores a transaction and announces it on the bus so
// the analysis worker can refresh the user's spending analysis.
func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	var req domain.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.MCC == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "mcc is required",
		})
		return
	}
	if req.Amount <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount must be positive",
		})
		return
	}

	tx := req.ToTransaction(userID)
	tx.ID = uuid.New().String()

	if err := h.repo.SaveTransaction(ctx, userID, tx); err != nil {
		slog.Error("failed to save transaction", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save transaction",
		})
		return
	}

	event := map[string]interface{}{
		"txId":   tx.ID,
		"userId": userID,
		"mcc":    tx.MCC,
		"cardId": tx.CardID,
		"amount": tx.Amount,
	}
	payload, _ := json.Marshal(event)
	if err := h.bus.Publish(ctx, userID, domain.TopicTransactionRecorded, payload); err != nil {
		slog.Error("failed to publish transaction", "user_id", userID, "error", err)
	}

	writeJSON(w, http.StatusCreated, tx)
}

// GetTransaction retrieves a single transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)
	txID := chi.URLParam(r, "id")

	tx, err := h.repo.GetTransaction(ctx, userID, txID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get transaction", "id", txID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// GetAnalysis returns the user's spending analysis, computing and caching
// it when no fresh copy exists. ?refresh=true forces recomputation.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := GetUserID(ctx)

	refresh := r.URL.Query().Get("refresh") == "true"

	if !refresh && h.cache != nil {
		analysis, err := h.cache.GetAnalysis(ctx, userID)
		if err != nil {
			slog.Error("analysis cache read failed", "user_id", userID, "error", err)
		}
		if analysis != nil {
			writeJSON(w, http.StatusOK, analysis)
			return
		}
	}

	since := time.Now().UTC().Add(-analysisWindow)
	transactions, err := h.repo.ListTransactions(ctx, userID, since)
	if err != nil {
		slog.Error("failed to list transactions", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load transactions",
		})
		return
	}

	cards, err := h.repo.ListCards(ctx, userID)
	if err != nil {
		slog.Error("failed to list cards", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load cards",
		})
		return
	}

	analysis := h.analyzer.Analyze(transactions, cards)

	if h.cache != nil {
		if err := h.cache.SetAnalysis(ctx, userID, analysis, h.analysisTTL); err != nil {
			slog.Error("failed to cache analysis", "user_id", userID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, analysis)
}

// GetCategory resolves a merchant category code through the catalog.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	entry, ok := h.catalog.Lookup(code)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown category code",
		})
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// ReloadCatalog reloads catalog entries from the database.
func (h *Handler) ReloadCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.repo.ListCatalogEntries(ctx)
	if err != nil {
		slog.Error("failed to list catalog entries", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load catalog entries",
		})
		return
	}

	h.catalog.Reload(entries)

	slog.Info("catalog reloaded from database", "count", len(entries))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "catalog reloaded successfully",
		"count":   len(entries),
	})
}

// CreatePolicyRequest is the request body for creating a selection policy.
type CreatePolicyRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}

// ListPolicies returns all policies currently loaded in the selector.
// Policies are loaded from the database at startup and can be reloaded
// via POST /policies/reload.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	loaded := h.policies.Loaded()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"policies": loaded,
		"count":    len(loaded),
		"source":   "database",
	})
}

// GetPolicy retrieves a policy by ID from the database, enabled or not.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID := chi.URLParam(r, "id")

	policy, err := h.repo.GetPolicy(ctx, policyID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get policy", "id", policyID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "policy not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, policy)
}

// CreatePolicy validates and saves a selection policy. Policies apply to
// all users. After saving, call POST /policies/reload to apply changes.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	policy := &domain.PolicyConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression before persisting
	if err := h.policies.Validate(policy); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SavePolicy(ctx, policy); err != nil {
		slog.Error("failed to save policy", "id", policy.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save policy",
		})
		return
	}

	slog.Info("policy created", "id", policy.ID, "name", policy.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"policy":  policy,
		"message": "Policy created. Call POST /policies/reload to apply changes.",
	})
}

// DeletePolicy deletes a policy and auto-reloads the selector.
func (h *Handler) DeletePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	policyID := chi.URLParam(r, "id")

	if err := h.repo.DeletePolicy(ctx, policyID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to delete policy", "id", policyID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "policy not found",
		})
		return
	}

	// Auto-reload the selector after delete
	policies, err := h.repo.ListPolicies(ctx)
	if err != nil {
		slog.Error("failed to reload policies after delete", "error", err)
	} else if err := h.policies.Reload(policies); err != nil {
		slog.Error("failed to reload policies into selector", "error", err)
	} else {
		slog.Info("policies auto-reloaded after delete", "count", h.policies.Count())
	}

	slog.Info("policy deleted", "id", policyID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Policy deleted and selector reloaded.",
	})
}

// ReloadPolicies reloads all enabled policies from the database into the
// selector. This enables hot-reloading without server restart.
func (h *Handler) ReloadPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policies, err := h.repo.ListPolicies(ctx)
	if err != nil {
		slog.Error("failed to list policies from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load policies from database",
		})
		return
	}

	if err := h.policies.Reload(policies); err != nil {
		slog.Error("failed to reload policies into selector", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload policies: " + err.Error(),
		})
		return
	}

	slog.Info("policies reloaded from database", "count", h.policies.Count())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "policies reloaded successfully",
		"count":   h.policies.Count(),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
