package postgres

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_applications",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE APPLICATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- One application per student. Nested profile data and document slots are
-- stored as JSONB; status, owner and assigned agent are columns for filtering.
CREATE TABLE IF NOT EXISTS applications (
    id UUID PRIMARY KEY,
    owner_id VARCHAR(64) NOT NULL UNIQUE,
    status VARCHAR(20) NOT NULL DEFAULT 'submitted',
    assigned_agent VARCHAR(64),
    rejection_feedback TEXT,

    education_history JSONB NOT NULL DEFAULT '[]'::jsonb,
    test_scores JSONB NOT NULL DEFAULT '{}'::jsonb,
    preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
    documents JSONB NOT NULL DEFAULT '{}'::jsonb,
    internal_notes JSONB NOT NULL DEFAULT '[]'::jsonb,

    version BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('draft', 'submitted', 'accepted', 'approved', 'rejected')),
    CONSTRAINT rejection_feedback_matches_status CHECK (
        (status = 'rejected') = (COALESCE(BTRIM(rejection_feedback), '') <> '')
    ),
    CONSTRAINT valid_version CHECK (version >= 1)
);

CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status);
CREATE INDEX IF NOT EXISTS idx_applications_assigned_agent ON applications(assigned_agent) WHERE assigned_agent IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_applications_updated_at ON applications(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_applications_agent_status ON applications(assigned_agent, status, updated_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS applications;
`
