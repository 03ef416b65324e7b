package orchestrator

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sarchlab/pite/model"
)

// Cache memoizes past experiment measurements keyed by instruction
// sequence, backed by a local sqlite3 database, so re-running the same
// experiment set (e.g. after a crash, or across two sampling passes that
// happen to overlap) skips measurements already on record. This is an
// internal acceleration structure, not a persisted exchange format.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if absent) the sqlite3 database at path and
// ensures its schema exists.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: opening cache database: %w", err)
	}
	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS measurements (
	iseq_key TEXT PRIMARY KEY,
	cycles REAL NOT NULL,
	measured_at INTEGER NOT NULL
);`
	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("orchestrator: migrating cache schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached cycle count for iseq, and whether it was
// found.
func (c *Cache) Lookup(iseq []*model.Instruction) (cycles float64, ok bool, err error) {
	row := c.db.QueryRow(`SELECT cycles FROM measurements WHERE iseq_key = ?`, cacheKey(iseq))
	if scanErr := row.Scan(&cycles); scanErr != nil {
		if scanErr == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("orchestrator: cache lookup: %w", scanErr)
	}
	return cycles, true, nil
}

// Store records a measured cycle count for iseq, replacing any earlier
// entry for the same sequence, together with measuredAt (unix seconds,
// supplied by the caller since the runtime clock may not be used inside
// other deterministic surfaces of this module).
func (c *Cache) Store(iseq []*model.Instruction, cycles float64, measuredAt int64) error {
	_, err := c.db.Exec(
		`INSERT INTO measurements (iseq_key, cycles, measured_at) VALUES (?, ?, ?)
		 ON CONFLICT(iseq_key) DO UPDATE SET cycles = excluded.cycles, measured_at = excluded.measured_at`,
		cacheKey(iseq), cycles, measuredAt)
	if err != nil {
		return fmt.Errorf("orchestrator: cache store: %w", err)
	}
	return nil
}

// cacheKey canonicalizes an instruction sequence (order matters;
// repetitions matter) into a stable lookup key.
func cacheKey(iseq []*model.Instruction) string {
	key := ""
	for i, insn := range iseq {
		if i > 0 {
			key += ","
		}
		key += insn.Name
	}
	return key
}
