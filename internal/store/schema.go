package store

const schema = `
CREATE TABLE IF NOT EXISTS arbiter_buckets (
	bucket_id   TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	volume_min  DOUBLE PRECISION,
	volume_max  DOUBLE PRECISION,
	price_min   DOUBLE PRECISION,
	price_max   DOUBLE PRECISION,
	margin_min  DOUBLE PRECISION,
	margin_max  DOUBLE PRECISION,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS arbiter_subjects (
	subject_id          TEXT PRIMARY KEY,
	name                TEXT NOT NULL DEFAULT '',
	total_volume        DOUBLE PRECISION NOT NULL,
	average_unit_price  DOUBLE PRECISION NOT NULL,
	profit_margin       DOUBLE PRECISION NOT NULL,
	total_revenue       DOUBLE PRECISION NOT NULL DEFAULT 0,
	delivery_count      INTEGER NOT NULL DEFAULT 0,
	last_activity       TIMESTAMPTZ,
	assigned_bucket     TEXT REFERENCES arbiter_buckets (bucket_id),
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS arbiter_subjects_unassigned_idx
	ON arbiter_subjects (subject_id) WHERE assigned_bucket IS NULL;

CREATE TABLE IF NOT EXISTS arbiter_decisions (
	decision_id   UUID PRIMARY KEY,
	subject_id    TEXT NOT NULL REFERENCES arbiter_subjects (subject_id),
	subject_name  TEXT NOT NULL DEFAULT '',
	bucket_id     TEXT NOT NULL REFERENCES arbiter_buckets (bucket_id),
	bucket_name   TEXT NOT NULL DEFAULT '',
	strategy      TEXT NOT NULL,
	match_score   DOUBLE PRECISION NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	reason        TEXT NOT NULL DEFAULT '',
	alternatives  JSONB,
	decided_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS arbiter_decisions_subject_idx ON arbiter_decisions (subject_id);

CREATE TABLE IF NOT EXISTS arbiter_journal (
	id             BIGSERIAL PRIMARY KEY,
	decision_id    UUID NOT NULL,
	subject_id     TEXT NOT NULL,
	bucket_id      TEXT NOT NULL,
	strategy       TEXT NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	weights        JSONB NOT NULL,
	resolution_ms  DOUBLE PRECISION NOT NULL,
	recorded_at    TIMESTAMPTZ NOT NULL
);
`
