package store

// Schema is the bootstrap DDL for the persisted schema. It is idempotent
// (CREATE IF NOT EXISTS) so the service can apply it on startup without a
// separate migration tool.
const Schema = `
CREATE TABLE IF NOT EXISTS team_sequence (
	id INT PRIMARY KEY,
	last_number BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS teams (
	id BIGSERIAL PRIMARY KEY,
	team_id TEXT NOT NULL UNIQUE,
	team_name TEXT NOT NULL,
	church_name TEXT NOT NULL,
	church_key TEXT NOT NULL,
	captain_name TEXT NOT NULL,
	captain_phone TEXT NOT NULL,
	captain_whatsapp TEXT NOT NULL,
	captain_email TEXT NOT NULL,
	vice_captain_name TEXT NOT NULL,
	vice_captain_phone TEXT NOT NULL,
	vice_captain_whatsapp TEXT NOT NULL,
	vice_captain_email TEXT NOT NULL,
	pastor_letter TEXT,
	payment_receipt TEXT,
	group_photo TEXT,
	registration_status TEXT NOT NULL DEFAULT 'pending'
		CHECK (registration_status IN ('pending', 'confirmed', 'rejected')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (team_name, captain_phone)
);

CREATE INDEX IF NOT EXISTS idx_teams_church_key ON teams (church_key);
CREATE INDEX IF NOT EXISTS idx_teams_status ON teams (registration_status);

CREATE TABLE IF NOT EXISTS players (
	id BIGSERIAL PRIMARY KEY,
	team_fk BIGINT NOT NULL REFERENCES teams (id) ON DELETE RESTRICT,
	player_id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	role TEXT,
	aadhar_file TEXT,
	subscription_file TEXT,
	position INT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_players_team_fk ON players (team_fk);

CREATE TABLE IF NOT EXISTS idempotency (
	key TEXT PRIMARY KEY,
	payload_hash TEXT NOT NULL,
	response_body JSONB,
	status TEXT NOT NULL CHECK (status IN ('in_flight', 'completed')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_idempotency_expires_at ON idempotency (expires_at);
`
