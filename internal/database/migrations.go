package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createUsersTable,
		createUserRolesTable,
		createTicketTypesTable,
		createTicketsTable,
		createCharityProjectsTable,
		createDonationsTable,
		createAuctionsTable,
		createBidsTable,
		createPendingIntentsTable,
		createReconciliationIssuesTable,
		createArtistsTable,
		createPerformancesTable,
		createNotificationLogsTable,
		createScheduledNotificationsTable,
		createIndexes,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash VARCHAR(100) NOT NULL,
    first_name VARCHAR(100) NOT NULL,
    last_name VARCHAR(100) NOT NULL,
    phone VARCHAR(32),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createUserRolesTable = `
CREATE TABLE IF NOT EXISTS user_roles (
    user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    role VARCHAR(32) NOT NULL,
    granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, role)
);`

const createTicketTypesTable = `
CREATE TABLE IF NOT EXISTS ticket_types (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    description TEXT,
    price BIGINT NOT NULL,
    available_quantity INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (price > 0),
    CHECK (available_quantity >= 0)
);`

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(id),
    ticket_type_id BIGINT NOT NULL REFERENCES ticket_types(id),
    ticket_number VARCHAR(64) UNIQUE NOT NULL,
    qr_code UUID UNIQUE NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    session_id VARCHAR(255) NOT NULL,
    purchased_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('active', 'used'))
);`

const createCharityProjectsTable = `
CREATE TABLE IF NOT EXISTS charity_projects (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    description TEXT,
    goal BIGINT NOT NULL,
    raised BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (goal > 0),
    CHECK (raised >= 0)
);`

const createDonationsTable = `
CREATE TABLE IF NOT EXISTS donations (
    id BIGSERIAL PRIMARY KEY,
    project_id BIGINT REFERENCES charity_projects(id) ON DELETE SET NULL,
    user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
    amount BIGINT NOT NULL,
    donor_name VARCHAR(200),
    message TEXT,
    project_label VARCHAR(255) NOT NULL,
    session_id VARCHAR(255) UNIQUE NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (amount > 0)
);`

const createAuctionsTable = `
CREATE TABLE IF NOT EXISTS auctions (
    id BIGSERIAL PRIMARY KEY,
    title VARCHAR(300) NOT NULL,
    description TEXT,
    image_url TEXT,
    starting_bid BIGINT NOT NULL,
    current_bid BIGINT,
    bid_count INTEGER NOT NULL DEFAULT 0,
    leading_bid_id BIGINT,
    status VARCHAR(20) NOT NULL DEFAULT 'upcoming',
    starts_at TIMESTAMPTZ NOT NULL,
    ends_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('upcoming', 'active', 'ended')),
    CHECK (starting_bid > 0),
    CHECK (current_bid IS NULL OR current_bid >= starting_bid),
    CHECK (bid_count >= 0),
    CHECK (ends_at > starts_at)
);`

const createBidsTable = `
CREATE TABLE IF NOT EXISTS bids (
    id BIGSERIAL PRIMARY KEY,
    auction_id BIGINT NOT NULL REFERENCES auctions(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL REFERENCES users(id),
    amount BIGINT NOT NULL,
    session_id VARCHAR(255) UNIQUE NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('pending', 'completed', 'failed')),
    CHECK (amount > 0)
);`

const createPendingIntentsTable = `
CREATE TABLE IF NOT EXISTS pending_intents (
    session_id VARCHAR(255) PRIMARY KEY,
    intent_type VARCHAR(20) NOT NULL,
    payload JSONB NOT NULL,
    amount BIGINT NOT NULL,
    user_id BIGINT,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    outcome VARCHAR(20),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ,

    CHECK (intent_type IN ('ticket', 'donation', 'bid')),
    CHECK (status IN ('pending', 'completed', 'expired')),
    CHECK (outcome IS NULL OR outcome IN ('fulfilled', 'flagged'))
);`

const createReconciliationIssuesTable = `
CREATE TABLE IF NOT EXISTS reconciliation_issues (
    id BIGSERIAL PRIMARY KEY,
    session_id VARCHAR(255) NOT NULL,
    intent_type VARCHAR(20) NOT NULL,
    kind VARCHAR(40) NOT NULL,
    detail TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at TIMESTAMPTZ,

    UNIQUE (session_id, kind)
);`

const createArtistsTable = `
CREATE TABLE IF NOT EXISTS artists (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(200) NOT NULL,
    slug VARCHAR(200) UNIQUE NOT NULL,
    description TEXT,
    genre VARCHAR(100),
    image_url TEXT,
    website TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createPerformancesTable = `
CREATE TABLE IF NOT EXISTS performances (
    id BIGSERIAL PRIMARY KEY,
    artist_id BIGINT NOT NULL REFERENCES artists(id) ON DELETE CASCADE,
    stage VARCHAR(100) NOT NULL,
    starts_at TIMESTAMPTZ NOT NULL,
    ends_at TIMESTAMPTZ NOT NULL,
    description TEXT,

    CHECK (ends_at > starts_at)
);`

const createNotificationLogsTable = `
CREATE TABLE IF NOT EXISTS notification_logs (
    id BIGSERIAL PRIMARY KEY,
    channel VARCHAR(20) NOT NULL,
    recipient_group VARCHAR(40) NOT NULL,
    recipient_count INTEGER NOT NULL DEFAULT 0,
    sent_count INTEGER NOT NULL DEFAULT 0,
    body TEXT NOT NULL,
    sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createScheduledNotificationsTable = `
CREATE TABLE IF NOT EXISTS scheduled_notifications (
    id BIGSERIAL PRIMARY KEY,
    channel VARCHAR(20) NOT NULL,
    recipient_group VARCHAR(40) NOT NULL,
    body TEXT NOT NULL,
    send_at TIMESTAMPTZ NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    sent_at TIMESTAMPTZ,
    log_id BIGINT REFERENCES notification_logs(id) ON DELETE SET NULL,
    error TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CHECK (status IN ('pending', 'sending', 'sent', 'failed', 'cancelled'))
);`

const createIndexes = `
CREATE INDEX IF NOT EXISTS pending_intents_status_created_idx ON pending_intents (status, created_at);
CREATE INDEX IF NOT EXISTS bids_auction_amount_idx ON bids (auction_id, amount DESC);
CREATE INDEX IF NOT EXISTS tickets_user_idx ON tickets (user_id);
CREATE INDEX IF NOT EXISTS donations_project_idx ON donations (project_id);
CREATE INDEX IF NOT EXISTS performances_starts_at_idx ON performances (starts_at);
CREATE INDEX IF NOT EXISTS scheduled_notifications_due_idx ON scheduled_notifications (send_at) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS reconciliation_issues_open_idx ON reconciliation_issues (created_at) WHERE resolved_at IS NULL;`
