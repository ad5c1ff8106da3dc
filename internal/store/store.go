// Package store persists the atom catalog and resolution pass history in a
// local sqlite database. The catalog's YAML files stay the source of truth
// for authoring; the store exists so a deployed catalog can be shipped as a
// single file and so past passes can be audited after the fact.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"atomgate/internal/atom"
	"atomgate/internal/gatekeeper"
	"atomgate/internal/logging"
)

// Store manages the atomgate database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewStore creates or opens the database under the given directory.
func NewStore(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, "atomgate.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS atoms (
		id TEXT PRIMARY KEY,
		version INTEGER NOT NULL DEFAULT 1,
		description TEXT,
		content TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		priority INTEGER NOT NULL,
		mandatory INTEGER NOT NULL DEFAULT 0,
		tags_json TEXT,
		requires_json TEXT,
		conflicts_json TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_atoms_mandatory ON atoms(mandatory);

	CREATE TABLE IF NOT EXISTS passes (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		context_json TEXT,
		catalog_size INTEGER NOT NULL,
		selected_count INTEGER NOT NULL,
		blocked_count INTEGER NOT NULL,
		prohibited_count INTEGER NOT NULL,
		candidate_count INTEGER NOT NULL,
		suppressed_count INTEGER NOT NULL,
		invalid_count INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_passes_created ON passes(created_at);

	CREATE TABLE IF NOT EXISTS pass_selections (
		pass_id TEXT NOT NULL,
		atom_id TEXT NOT NULL,
		priority INTEGER NOT NULL,
		score REAL NOT NULL,
		provenance TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (pass_id, atom_id),
		FOREIGN KEY (pass_id) REFERENCES passes(id)
	);

	CREATE TABLE IF NOT EXISTS pass_rejections (
		pass_id TEXT NOT NULL,
		atom_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		PRIMARY KEY (pass_id, atom_id),
		FOREIGN KEY (pass_id) REFERENCES passes(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveAtoms upserts the given atoms in a single transaction.
func (s *Store) SaveAtoms(atoms []*atom.Atom) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO atoms (id, version, description, content, token_count, content_hash,
			priority, mandatory, tags_json, requires_json, conflicts_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			description = excluded.description,
			content = excluded.content,
			token_count = excluded.token_count,
			content_hash = excluded.content_hash,
			priority = excluded.priority,
			mandatory = excluded.mandatory,
			tags_json = excluded.tags_json,
			requires_json = excluded.requires_json,
			conflicts_json = excluded.conflicts_json`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range atoms {
		tagsJSON, err := json.Marshal(a.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags for %s: %w", a.ID, err)
		}
		requiresJSON, err := json.Marshal(a.Requires)
		if err != nil {
			return fmt.Errorf("failed to marshal requires for %s: %w", a.ID, err)
		}
		conflictsJSON, err := json.Marshal(a.Conflicts)
		if err != nil {
			return fmt.Errorf("failed to marshal conflicts for %s: %w", a.ID, err)
		}

		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		mandatory := 0
		if a.Mandatory {
			mandatory = 1
		}

		if _, err := stmt.Exec(a.ID, a.Version, a.Description, a.Content, a.TokenCount,
			a.ContentHash, a.Priority, mandatory,
			string(tagsJSON), string(requiresJSON), string(conflictsJSON), createdAt); err != nil {
			return fmt.Errorf("failed to save atom %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.Get(logging.CategoryStore).Info("Saved %d atoms to %s", len(atoms), s.dbPath)
	return nil
}

// LoadCatalog reads every stored atom and builds a validated catalog.
func (s *Store) LoadCatalog() (*atom.Catalog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, version, description, content, token_count, content_hash,
			priority, mandatory, tags_json, requires_json, conflicts_json, created_at
		FROM atoms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query atoms: %w", err)
	}
	defer rows.Close()

	var atoms []*atom.Atom
	for rows.Next() {
		var (
			a             atom.Atom
			mandatory     int
			tagsJSON      sql.NullString
			requiresJSON  sql.NullString
			conflictsJSON sql.NullString
			description   sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Version, &description, &a.Content, &a.TokenCount,
			&a.ContentHash, &a.Priority, &mandatory,
			&tagsJSON, &requiresJSON, &conflictsJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan atom row: %w", err)
		}
		a.Mandatory = mandatory != 0
		a.Description = description.String
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &a.Tags); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tags for %s: %w", a.ID, err)
			}
		}
		if requiresJSON.Valid && requiresJSON.String != "" {
			if err := json.Unmarshal([]byte(requiresJSON.String), &a.Requires); err != nil {
				return nil, fmt.Errorf("failed to unmarshal requires for %s: %w", a.ID, err)
			}
		}
		if conflictsJSON.Valid && conflictsJSON.String != "" {
			if err := json.Unmarshal([]byte(conflictsJSON.String), &a.Conflicts); err != nil {
				return nil, fmt.Errorf("failed to unmarshal conflicts for %s: %w", a.ID, err)
			}
		}
		atoms = append(atoms, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate atom rows: %w", err)
	}

	return atom.NewCatalog(atoms)
}

// DeleteAtom removes an atom by ID. Referential integrity against other
// atoms' requires/conflicts is re-checked at the next LoadCatalog.
func (s *Store) DeleteAtom(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM atoms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete atom %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("atom %s not found", id)
	}
	return nil
}

// AtomCount returns the number of stored atoms.
func (s *Store) AtomCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM atoms`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count atoms: %w", err)
	}
	return n, nil
}

// PassRecord is one recorded resolution pass.
type PassRecord struct {
	ID        string
	CreatedAt time.Time
	Context   map[string]string
	Stats     gatekeeper.Stats
	Selected  []gatekeeper.Selection
	Rejected  []gatekeeper.Rejection
}

// RecordPass persists a resolution result with its context for later audit.
func (s *Store) RecordPass(snap *gatekeeper.Snapshot, res *gatekeeper.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := make(map[string]string)
	for _, dim := range snap.Dimensions() {
		v, _ := snap.Value(dim)
		ctx[dim] = v
	}
	ctxJSON, err := json.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to marshal context: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO passes (id, created_at, context_json, catalog_size, selected_count,
			blocked_count, prohibited_count, candidate_count, suppressed_count, invalid_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.PassID, time.Now(), string(ctxJSON), res.Stats.CatalogSize, res.Stats.Selected,
		res.Stats.Blocked, res.Stats.Prohibited, res.Stats.Candidates,
		res.Stats.Suppressed, res.Stats.Invalid); err != nil {
		return fmt.Errorf("failed to record pass %s: %w", res.PassID, err)
	}

	for i, sel := range res.Selected {
		if _, err := tx.Exec(`
			INSERT INTO pass_selections (pass_id, atom_id, priority, score, provenance, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			res.PassID, sel.ID, sel.Priority, sel.Score, string(sel.Provenance), i); err != nil {
			return fmt.Errorf("failed to record selection %s: %w", sel.ID, err)
		}
	}
	for _, rej := range res.Rejected {
		if _, err := tx.Exec(`
			INSERT INTO pass_rejections (pass_id, atom_id, reason)
			VALUES (?, ?, ?)`,
			res.PassID, rej.ID, string(rej.Reason)); err != nil {
			return fmt.Errorf("failed to record rejection %s: %w", rej.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logging.Get(logging.CategoryStore).Debug("Recorded pass %s (%d selected)",
		res.PassID, len(res.Selected))
	return nil
}

// LoadPass reads a recorded pass back, including its selection and
// rejection details.
func (s *Store) LoadPass(passID string) (*PassRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := &PassRecord{ID: passID}
	var ctxJSON sql.NullString
	err := s.db.QueryRow(`
		SELECT created_at, context_json, catalog_size, selected_count,
			blocked_count, prohibited_count, candidate_count, suppressed_count, invalid_count
		FROM passes WHERE id = ?`, passID).Scan(
		&rec.CreatedAt, &ctxJSON, &rec.Stats.CatalogSize, &rec.Stats.Selected,
		&rec.Stats.Blocked, &rec.Stats.Prohibited, &rec.Stats.Candidates,
		&rec.Stats.Suppressed, &rec.Stats.Invalid)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("pass %s not found", passID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pass %s: %w", passID, err)
	}
	if ctxJSON.Valid && ctxJSON.String != "" {
		if err := json.Unmarshal([]byte(ctxJSON.String), &rec.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal context for %s: %w", passID, err)
		}
	}

	rows, err := s.db.Query(`
		SELECT atom_id, priority, score, provenance FROM pass_selections
		WHERE pass_id = ? ORDER BY position`, passID)
	if err != nil {
		return nil, fmt.Errorf("failed to query selections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sel gatekeeper.Selection
		var prov string
		if err := rows.Scan(&sel.ID, &sel.Priority, &sel.Score, &prov); err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		sel.Provenance = gatekeeper.Provenance(prov)
		rec.Selected = append(rec.Selected, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate selections: %w", err)
	}

	rejRows, err := s.db.Query(`
		SELECT atom_id, reason FROM pass_rejections
		WHERE pass_id = ? ORDER BY atom_id`, passID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rejections: %w", err)
	}
	defer rejRows.Close()
	for rejRows.Next() {
		var rej gatekeeper.Rejection
		var reason string
		if err := rejRows.Scan(&rej.ID, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan rejection: %w", err)
		}
		rej.Reason = gatekeeper.RejectionReason(reason)
		rec.Rejected = append(rec.Rejected, rej)
	}
	if err := rejRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rejections: %w", err)
	}

	return rec, nil
}

// ListPasses returns summaries of the most recent passes, newest first.
// Selections and rejections are not populated; use LoadPass for those.
func (s *Store) ListPasses(limit int) ([]*PassRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, created_at, catalog_size, selected_count,
			blocked_count, prohibited_count, candidate_count, suppressed_count, invalid_count
		FROM passes ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}
	defer rows.Close()

	var records []*PassRecord
	for rows.Next() {
		rec := &PassRecord{}
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.Stats.CatalogSize,
			&rec.Stats.Selected, &rec.Stats.Blocked, &rec.Stats.Prohibited,
			&rec.Stats.Candidates, &rec.Stats.Suppressed, &rec.Stats.Invalid); err != nil {
			return nil, fmt.Errorf("failed to scan pass row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pass rows: %w", err)
	}
	return records, nil
}
