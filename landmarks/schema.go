package landmarks

const schema = `
-- Named landmark sets
CREATE TABLE IF NOT EXISTS landmark_sets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    kernel_exponent REAL,
    kernel_scale REAL,
    updated_at INTEGER NOT NULL
);

-- Landmark pairs in index order
CREATE TABLE IF NOT EXISTS landmarks (
    set_id INTEGER NOT NULL,
    idx INTEGER NOT NULL,
    source_x REAL NOT NULL,
    source_y REAL NOT NULL,
    source_z REAL NOT NULL,
    dest_x REAL NOT NULL,
    dest_y REAL NOT NULL,
    dest_z REAL NOT NULL,
    FOREIGN KEY (set_id) REFERENCES landmark_sets(id) ON DELETE CASCADE,
    PRIMARY KEY (set_id, idx)
);
`
