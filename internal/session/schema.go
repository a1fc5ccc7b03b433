package session

// schema creates the run tables. reference_date is RFC 3339 text; created_at
// is Unix nanoseconds so it orders numerically.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    error TEXT,
    reference_date TEXT,
    record_count INTEGER NOT NULL DEFAULT 0,
    quartiles TEXT,
    aggregates TEXT,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS customers (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    ord INTEGER NOT NULL,
    customer_id TEXT NOT NULL,
    recency INTEGER NOT NULL,
    frequency INTEGER NOT NULL,
    value REAL NOT NULL,
    r_grade TEXT NOT NULL,
    f_grade TEXT NOT NULL,
    v_grade TEXT NOT NULL,
    rfv_score TEXT NOT NULL,
    suggested_action TEXT,
    PRIMARY KEY (run_id, ord)
);

CREATE INDEX IF NOT EXISTS idx_customers_score ON customers(run_id, rfv_score);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`
