package orchestrator

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/sarchlab/pite/model"
)

// Sink publishes measured experiments to a shared MySQL database, letting
// several measurement machines in a fleet pool results instead of each
// keeping its own local Cache in isolation.
type Sink struct {
	db *sql.DB
}

// OpenSink connects to a MySQL instance at dsn and ensures its schema
// exists. dsn follows the go-sql-driver/mysql DSN format
// (user:password@tcp(host:port)/dbname).
func OpenSink(dsn string) (*Sink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: opening sink connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("orchestrator: connecting to sink: %w", err)
	}
	s := &Sink{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS measurements (
	iseq_key VARCHAR(2048) NOT NULL,
	cycles DOUBLE NOT NULL,
	source_host VARCHAR(255) NOT NULL,
	measured_at BIGINT NOT NULL,
	PRIMARY KEY (iseq_key, source_host)
);`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("orchestrator: migrating sink schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Publish records a measurement from sourceHost, so results from many
// machines can be reconciled without overwriting each other's rows.
func (s *Sink) Publish(iseq []*model.Instruction, cycles float64, sourceHost string, measuredAt int64) error {
	_, err := s.db.Exec(
		`INSERT INTO measurements (iseq_key, cycles, source_host, measured_at) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE cycles = VALUES(cycles), measured_at = VALUES(measured_at)`,
		cacheKey(iseq), cycles, sourceHost, measuredAt)
	if err != nil {
		return fmt.Errorf("orchestrator: sink publish: %w", err)
	}
	return nil
}

// FetchAll returns every distinct iseq key recorded across all hosts,
// along with the most recently measured cycle count for each — used to
// seed a fresh local Cache from the fleet's shared history.
func (s *Sink) FetchAll() (map[string]float64, error) {
	rows, err := s.db.Query(
		`SELECT iseq_key, cycles FROM measurements m
		 WHERE measured_at = (SELECT MAX(measured_at) FROM measurements WHERE iseq_key = m.iseq_key)`)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: sink fetch: %w", err)
	}
	defer rows.Close()

	res := make(map[string]float64)
	for rows.Next() {
		var key string
		var cycles float64
		if err := rows.Scan(&key, &cycles); err != nil {
			return nil, fmt.Errorf("orchestrator: sink fetch scan: %w", err)
		}
		res[key] = cycles
	}
	return res, rows.Err()
}
