package postgres

// schemaMigrations are idempotent statements that migrate runs in order
// on every startup; migrate creates the schema_version table but writes
// no rows to it. No column here records last_read_at, delivered_at, ip or
// location (spec §4.3 "no timing leakage schema").
var schemaMigrations = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		channel_id TEXT NOT NULL,
		epoch      BIGINT NOT NULL,
		data       BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (channel_id, epoch)
	)`,
	`CREATE TABLE IF NOT EXISTS channels (
		channel_id     TEXT PRIMARY KEY,
		name_ct        BYTEA NOT NULL,
		topic_ct       BYTEA NOT NULL,
		members_ct     BYTEA NOT NULL,
		schema_version INTEGER NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		channel_id  TEXT NOT NULL,
		sender_hash BYTEA NOT NULL,
		ciphertext  BYTEA NOT NULL,
		sequence    BIGINT NOT NULL,
		processed   BOOLEAN NOT NULL DEFAULT false,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_channel_seq ON messages (channel_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS key_packages (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		data       BYTEA NOT NULL,
		used       BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS operation_log (
		channel_id TEXT NOT NULL,
		sequence   BIGINT NOT NULL,
		kind       TEXT NOT NULL,
		payload    BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (channel_id, sequence)
	)`,
}
