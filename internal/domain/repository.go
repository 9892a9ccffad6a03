package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Card, transaction, and recommendation methods require userID for strict
// per-user isolation; catalog entries and policies are shared.
type Repository interface {
	// Card operations
	SaveCard(ctx context.Context, userID string, card *Card) error
	GetCard(ctx context.Context, userID string, cardID string) (*Card, error)
	ListCards(ctx context.Context, userID string) ([]*Card, error)

	// Transaction operations
	SaveTransaction(ctx context.Context, userID string, tx *Transaction) error
	GetTransaction(ctx context.Context, userID string, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context, userID string, since time.Time) ([]*Transaction, error)

	// Recommendation records
	SaveRecommendation(ctx context.Context, userID string, rec *RecommendationRecord) error
	GetRecommendation(ctx context.Context, userID string, recID string) (*RecommendationRecord, error)

	// Merchant category catalog
	SaveCatalogEntry(ctx context.Context, entry *CatalogEntry) error
	ListCatalogEntries(ctx context.Context) ([]*CatalogEntry, error)

	// Selection policies
	SavePolicy(ctx context.Context, policy *PolicyConfig) error
	GetPolicy(ctx context.Context, policyID string) (*PolicyConfig, error)
	ListPolicies(ctx context.Context) ([]*PolicyConfig, error)
	DeletePolicy(ctx context.Context, policyID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
