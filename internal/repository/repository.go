// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/metapayd/cardwise/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveCard stores or updates a card with user isolation.
func (r *SQLRepository) SaveCard(ctx context.Context, userID string, card *domain.Card) error {
	if userID == "" {
		return fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	rewards, _ := json.Marshal(card.Rewards)

	active := 0
	if card.Active {
		active = 1
	}

	query := `
		INSERT INTO cards (
			id, user_id, name, network, last_four, active,
			balance, credit_limit, annual_fee, rewards, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, user_id) DO UPDATE SET
			name = excluded.name,
			network = excluded.network,
			last_four = excluded.last_four,
			active = excluded.active,
			balance = excluded.balance,
			credit_limit = excluded.credit_limit,
			annual_fee = excluded.annual_fee,
			rewards = excluded.rewards,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		card.ID, userID, card.Name, card.Network, card.LastFour, active,
		card.Balance, card.CreditLimit, card.AnnualFee, string(rewards),
		card.CreatedAt, card.UpdatedAt,
	)
	return err
}

// GetCard retrieves a card by ID with user isolation.
func (r *SQLRepository) GetCard(ctx context.Context, userID string, cardID string) (*domain.Card, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, name, network, last_four, active,
			   balance, credit_limit, annual_fee, rewards, created_at, updated_at
		FROM cards
		WHERE user_id = ? AND id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), userID, cardID)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return card, err
}

// ListCards retrieves all cards for a user, ordered by creation time.
// Creation order is significant downstream: the selector breaks score ties
// in favor of the earlier card.
func (r *SQLRepository) ListCards(ctx context.Context, userID string) ([]*domain.Card, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, name, network, last_four, active,
			   balance, credit_limit, annual_fee, rewards, created_at, updated_at
		FROM cards
		WHERE user_id = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}

	return cards, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*domain.Card, error) {
	var card domain.Card
	var rewards string
	var active int

	err := row.Scan(
		&card.ID, &card.UserID, &card.Name, &card.Network, &card.LastFour, &active,
		&card.Balance, &card.CreditLimit, &card.AnnualFee, &rewards,
		&card.CreatedAt, &card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	card.Active = active == 1
	if err := json.Unmarshal([]byte(rewards), &card.Rewards); err != nil {
		return nil, fmt.Errorf("failed to parse reward program for %s: %w", card.ID, err)
	}

	return &card, nil
}

// SaveTransaction stores a transaction with user isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, userID string, tx *domain.Transaction) error {
	if userID == "" {
		return fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, user_id, merchant_name, mcc, card_id,
			amount, reward_earned, potential_reward, timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, userID, tx.MerchantName, tx.MCC, tx.CardID,
		tx.Amount, tx.RewardEarned, tx.PotentialReward,
		tx.Timestamp, tx.CreatedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID with user isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, userID string, txID string) (*domain.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, merchant_name, mcc, card_id,
			   amount, reward_earned, potential_reward, timestamp, created_at
		FROM transactions
		WHERE user_id = ? AND id = ?
	`

	var tx domain.Transaction

	err := r.db.QueryRowContext(ctx, r.rebind(query), userID, txID).Scan(
		&tx.ID, &tx.UserID, &tx.MerchantName, &tx.MCC, &tx.CardID,
		&tx.Amount, &tx.RewardEarned, &tx.PotentialReward,
		&tx.Timestamp, &tx.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &tx, nil
}

// ListTransactions retrieves a user's transactions since a point in time,
// newest first.
func (r *SQLRepository) ListTransactions(ctx context.Context, userID string, since time.Time) ([]*domain.Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, merchant_name, mcc, card_id,
			   amount, reward_earned, potential_reward, timestamp, created_at
		FROM transactions
		WHERE user_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction

		if err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.MerchantName, &tx.MCC, &tx.CardID,
			&tx.Amount, &tx.RewardEarned, &tx.PotentialReward,
			&tx.Timestamp, &tx.CreatedAt,
		); err != nil {
			return nil, err
		}

		transactions = append(transactions, &tx)
	}

	return transactions, rows.Err()
}

// SaveRecommendation stores a recommendation record with user isolation.
func (r *SQLRepository) SaveRecommendation(ctx context.Context, userID string, rec *domain.RecommendationRecord) error {
	if userID == "" {
		return fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(rec.Reasons)

	query := `
		INSERT INTO recommendations (
			id, user_id, mcc, amount, card_id, card_name,
			expected_reward, reward_rate, potential_savings, category,
			reasons, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, userID, rec.MCC, rec.Amount, rec.CardID, rec.CardName,
		rec.ExpectedReward, rec.RewardRate, rec.PotentialSavings, rec.Category,
		string(reasons), rec.CreatedAt,
	)
	return err
}

// GetRecommendation retrieves a recommendation record by ID with user isolation.
func (r *SQLRepository) GetRecommendation(ctx context.Context, userID string, recID string) (*domain.RecommendationRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, user_id, mcc, amount, card_id, card_name,
			   expected_reward, reward_rate, potential_savings, category,
			   reasons, created_at
		FROM recommendations
		WHERE user_id = ? AND id = ?
	`

	var rec domain.RecommendationRecord
	var reasons string

	err := r.db.QueryRowContext(ctx, r.rebind(query), userID, recID).Scan(
		&rec.ID, &rec.UserID, &rec.MCC, &rec.Amount, &rec.CardID, &rec.CardName,
		&rec.ExpectedReward, &rec.RewardRate, &rec.PotentialSavings, &rec.Category,
		&reasons, &rec.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(reasons), &rec.Reasons)

	return &rec, nil
}

// SaveCatalogEntry stores or updates a merchant category catalog entry.
// The catalog is shared across users.
func (r *SQLRepository) SaveCatalogEntry(ctx context.Context, entry *domain.CatalogEntry) error {
	if entry.Code == "" {
		return fmt.Errorf("%w: category code is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO catalog_entries (code, name, description)
		VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			description = excluded.description
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query), entry.Code, entry.Name, entry.Description)
	return err
}

// ListCatalogEntries retrieves all catalog entries.
func (r *SQLRepository) ListCatalogEntries(ctx context.Context) ([]*domain.CatalogEntry, error) {
	query := `
		SELECT code, name, description
		FROM catalog_entries
		ORDER BY code
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.CatalogEntry
	for rows.Next() {
		var entry domain.CatalogEntry
		if err := rows.Scan(&entry.Code, &entry.Name, &entry.Description); err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// SavePolicy stores or updates a selection policy. Policies are shared
// across users.
func (r *SQLRepository) SavePolicy(ctx context.Context, policy *domain.PolicyConfig) error {
	if policy.ID == "" {
		return fmt.Errorf("%w: policy ID is required", ErrInvalidInput)
	}

	enabled := 0
	if policy.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()
	createdAt := policy.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO policies (
			id, name, description, expression, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		policy.ID, policy.Name, policy.Description, policy.Expression,
		enabled, createdAt, now,
	)
	return err
}

// GetPolicy retrieves a selection policy by ID.
func (r *SQLRepository) GetPolicy(ctx context.Context, policyID string) (*domain.PolicyConfig, error) {
	query := `
		SELECT id, name, description, expression, enabled, created_at, updated_at
		FROM policies
		WHERE id = ?
	`

	var policy domain.PolicyConfig
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), policyID).Scan(
		&policy.ID, &policy.Name, &policy.Description, &policy.Expression,
		&enabled, &policy.CreatedAt, &policy.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	policy.Enabled = enabled == 1

	return &policy, nil
}

// ListPolicies retrieves all selection policies, enabled or not.
func (r *SQLRepository) ListPolicies(ctx context.Context) ([]*domain.PolicyConfig, error) {
	query := `
		SELECT id, name, description, expression, enabled, created_at, updated_at
		FROM policies
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.PolicyConfig
	for rows.Next() {
		var policy domain.PolicyConfig
		var enabled int

		if err := rows.Scan(
			&policy.ID, &policy.Name, &policy.Description, &policy.Expression,
			&enabled, &policy.CreatedAt, &policy.UpdatedAt,
		); err != nil {
			return nil, err
		}

		policy.Enabled = enabled == 1
		policies = append(policies, &policy)
	}

	return policies, rows.Err()
}

// DeletePolicy removes a selection policy.
func (r *SQLRepository) DeletePolicy(ctx context.Context, policyID string) error {
	query := `DELETE FROM policies WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), policyID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
