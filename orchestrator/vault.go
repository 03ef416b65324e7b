package orchestrator

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Vault is a journal of result entries with Add, LastProgress and All
// (§12's redesign of the file-based Python Vault: this one is backed by
// the same sqlite3 connection as Cache rather than an append-only text
// file). pite-infer adds one entry, the final inferred mapping, and does
// not resume from earlier entries.
type Vault struct {
	db *sql.DB
}

// OpenVault opens a Vault sharing cache's underlying sqlite3 connection,
// so a single database file holds both the measurement memoization table
// and the progress journal.
func OpenVault(cache *Cache) (*Vault, error) {
	v := &Vault{db: cache.db}
	if err := v.migrate(); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Vault) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS vault_entries (
	progress_id INTEGER PRIMARY KEY,
	data TEXT NOT NULL
);`
	_, err := v.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("orchestrator: migrating vault schema: %w", err)
	}
	return nil
}

// LastProgress returns the highest progress_id recorded, and whether the
// vault has any entries at all (mirroring Vault.last_progress).
func (v *Vault) LastProgress() (id int, ok bool, err error) {
	row := v.db.QueryRow(`SELECT MAX(progress_id) FROM vault_entries`)
	var maybeID sql.NullInt64
	if err := row.Scan(&maybeID); err != nil {
		return 0, false, fmt.Errorf("orchestrator: vault last progress: %w", err)
	}
	if !maybeID.Valid {
		return 0, false, nil
	}
	return int(maybeID.Int64), true, nil
}

// Add records data under the next progress id after the current highest,
// returning the id it was stored under.
func (v *Vault) Add(data any) (int, error) {
	last, ok, err := v.LastProgress()
	if err != nil {
		return 0, err
	}
	id := 0
	if ok {
		id = last + 1
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: vault encoding entry: %w", err)
	}

	_, err = v.db.Exec(`INSERT INTO vault_entries (progress_id, data) VALUES (?, ?)`, id, string(encoded))
	if err != nil {
		return 0, fmt.Errorf("orchestrator: vault insert: %w", err)
	}
	return id, nil
}

// All returns every recorded entry, ordered by progress id, decoded into
// raw JSON messages the caller can unmarshal as it sees fit.
func (v *Vault) All() ([]json.RawMessage, error) {
	rows, err := v.db.Query(`SELECT data FROM vault_entries ORDER BY progress_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: vault read all: %w", err)
	}
	defer rows.Close()

	var res []json.RawMessage
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("orchestrator: vault read scan: %w", err)
		}
		res = append(res, json.RawMessage(data))
	}
	return res, rows.Err()
}
