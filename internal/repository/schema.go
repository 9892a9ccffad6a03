package repository

// Schema definitions for the Cardwise database.
// Compatible with both SQLite and PostgreSQL.

const schemaCards = `
CREATE TABLE IF NOT EXISTS cards (
    id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    network TEXT NOT NULL,
    last_four TEXT,
    active INTEGER NOT NULL DEFAULT 1,
    balance REAL NOT NULL DEFAULT 0,
    credit_limit REAL NOT NULL DEFAULT 0,
    annual_fee REAL NOT NULL DEFAULT 0,
    rewards TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_cards_user ON cards(user_id);
CREATE INDEX IF NOT EXISTS idx_cards_active ON cards(user_id, active);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    merchant_name TEXT,
    mcc TEXT NOT NULL,
    card_id TEXT NOT NULL,
    amount REAL NOT NULL,
    reward_earned REAL NOT NULL DEFAULT 0,
    potential_reward REAL NOT NULL DEFAULT 0,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(user_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_card ON transactions(user_id, card_id);
`

const schemaRecommendations = `
CREATE TABLE IF NOT EXISTS recommendations (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    mcc TEXT NOT NULL,
    amount REAL NOT NULL,
    card_id TEXT NOT NULL,
    card_name TEXT NOT NULL,
    expected_reward REAL NOT NULL,
    reward_rate REAL NOT NULL,
    potential_savings REAL NOT NULL,
    category TEXT NOT NULL,
    reasons TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recommendations_user ON recommendations(user_id);
`

const schemaCatalogEntries = `
CREATE TABLE IF NOT EXISTS catalog_entries (
    code TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT
);
`

const schemaPolicies = `
CREATE TABLE IF NOT EXISTS policies (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_enabled ON policies(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCards,
		schemaTransactions,
		schemaRecommendations,
		schemaCatalogEntries,
		schemaPolicies,
	}
}
