package store

// schemaSQL is the DDL for all tables. Every graph build is stored as one
// builds row with its rules and relationships.
const schemaSQL = `
-- One row per graph build
CREATE TABLE IF NOT EXISTS builds (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    node_count INTEGER NOT NULL DEFAULT 0,
    edge_count INTEGER NOT NULL DEFAULT 0,
    statistics JSON,
    metadata JSON
);

-- Rule nodes
CREATE TABLE IF NOT EXISTS rules (
    build_id TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
    node_id TEXT NOT NULL,
    system TEXT NOT NULL,
    rule TEXT NOT NULL,
    position INTEGER NOT NULL,
    label TEXT NOT NULL,
    title TEXT,
    category TEXT NOT NULL,
    word_count INTEGER DEFAULT 0,
    page_count INTEGER DEFAULT 0,
    filing_relevance REAL DEFAULT 0,
    url TEXT,
    classification TEXT,
    requirements JSON,
    deadlines JSON,
    cross_refs JSON,
    key_provisions JSON,
    county TEXT,
    judge TEXT,
    department TEXT,
    judge_specific INTEGER DEFAULT 0,
    department_specific INTEGER DEFAULT 0,
    PRIMARY KEY (build_id, node_id)
);

-- Typed edges between rules
CREATE TABLE IF NOT EXISTS relationships (
    id INTEGER PRIMARY KEY,
    build_id TEXT NOT NULL REFERENCES builds(id) ON DELETE CASCADE,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    type TEXT NOT NULL,
    weight INTEGER NOT NULL,
    description TEXT,
    strength INTEGER DEFAULT 0,
    relation TEXT,
    UNIQUE(build_id, source_id, target_id, type)
);

CREATE INDEX IF NOT EXISTS idx_rules_category ON rules(build_id, category);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(build_id, source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(build_id, target_id);
CREATE INDEX IF NOT EXISTS idx_builds_created ON builds(created_at);
`
