package inventory

import (
	"context"
	"database/sql"

	"gitlab.com/tozd/go/errors"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS host_inventory_cache (
	host_id         VARCHAR(128) PRIMARY KEY,
	vms_json        TEXT NOT NULL,
	networks_json   TEXT NOT NULL,
	images_json     TEXT NOT NULL,
	pools_json      TEXT NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	last_error      TEXT,
	last_success_at TIMESTAMPTZ
)`

// SQLStore persists cache rows in a relational database so multiple
// dashboard instances can share one cache. The upsert replaces all four
// collections in a single statement, which is what keeps a row internally
// consistent for concurrent readers.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore connects via the pgx database/sql driver and ensures the
// cache table exists. The driver must be linked by the importing binary.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	if !hasSQLDriver("pgx") {
		return nil, errors.New("pgx SQL driver is not linked; import github.com/jackc/pgx/v5/stdlib")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Errorf("opening cache database: %w", err)
	}
	store := &SQLStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, cacheSchema); err != nil {
		return errors.Errorf("ensuring cache schema: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Get(ctx context.Context, hostID string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT vms_json, networks_json, images_json, pools_json, updated_at, last_error, last_success_at
		FROM host_inventory_cache WHERE host_id = $1`, hostID)

	var entry Entry
	var lastError sql.NullString
	var lastSuccess sql.NullTime
	err := row.Scan(&entry.VMs, &entry.Networks, &entry.Images, &entry.Pools, &entry.UpdatedAt, &lastError, &lastSuccess)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Errorf("reading cache row for %s: %w", hostID, err)
	}
	entry.LastError = lastError.String
	if lastSuccess.Valid {
		t := lastSuccess.Time
		entry.LastSuccessAt = &t
	}
	return entry, true, nil
}

func (s *SQLStore) Put(ctx context.Context, hostID string, entry Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO host_inventory_cache
			(host_id, vms_json, networks_json, images_json, pools_json, updated_at, last_error, last_success_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, $6)
		ON CONFLICT (host_id) DO UPDATE SET
			vms_json        = excluded.vms_json,
			networks_json   = excluded.networks_json,
			images_json     = excluded.images_json,
			pools_json      = excluded.pools_json,
			updated_at      = excluded.updated_at,
			last_error      = NULL,
			last_success_at = excluded.updated_at`,
		hostID, string(entry.VMs), string(entry.Networks), string(entry.Images), string(entry.Pools), entry.UpdatedAt)
	if err != nil {
		return errors.Errorf("writing cache row for %s: %w", hostID, err)
	}
	return nil
}

func (s *SQLStore) SetError(ctx context.Context, hostID, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE host_inventory_cache SET last_error = $2 WHERE host_id = $1`, hostID, message)
	if err != nil {
		return errors.Errorf("annotating cache row for %s: %w", hostID, err)
	}
	return nil
}

func hasSQLDriver(name string) bool {
	for _, driver := range sql.Drivers() {
		if driver == name {
			return true
		}
	}
	return false
}
