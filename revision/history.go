// Package revision keeps an undo history of chunk and file edits on top of a
// world folder. Edits land in a SQLite database, one row per key and
// revision, and reach the folder only through WriteAllChanges.
package revision

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/astei/anvilworld/worldfolder"
)

var ErrReadOnlyRevision = errors.New("revision: revision is read only")
var ErrNoRevision = errors.New("revision: no such revision")

// History is the linear list of revisions of one world. Position 0 is the
// world folder itself; every later position layers its rows over all the
// positions before it. It is not safe for concurrent use.
type History struct {
	folder *worldfolder.Folder
	db     *sql.DB
	nodes  []*Revision
	guard  func() error

	requireRevisions bool
}

// Open binds a history database to folder. Without resume any history left
// at dbPath by an earlier session is discarded.
func Open(folder *worldfolder.Folder, dbPath string, resume bool) (*History, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("revision: empty db path")
	}
	if folder.ReadOnly() {
		return nil, fmt.Errorf("revision: %w", worldfolder.ErrReadOnly)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	if !resume {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	h := &History{folder: folder, db: db}
	if err := h.loadNodes(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS revisions (
			id INTEGER PRIMARY KEY,
			read_only INTEGER NOT NULL DEFAULT 0,
			info BLOB
		);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			rev INTEGER NOT NULL,
			dim TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			data BLOB,
			deleted INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (rev, dim, cx, cz)
		);`,
		`CREATE INDEX IF NOT EXISTS chunks_by_key ON chunks(dim, cx, cz, rev);`,
		`CREATE TABLE IF NOT EXISTS files (
			rev INTEGER NOT NULL,
			path TEXT NOT NULL,
			data BLOB,
			deleted INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (rev, path)
		);`,
		`INSERT OR IGNORE INTO revisions(id, read_only) VALUES (0, 0);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (h *History) loadNodes() error {
	rows, err := h.db.Query(`SELECT id, read_only FROM revisions ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		var readOnly bool
		if err := rows.Scan(&id, &readOnly); err != nil {
			return err
		}
		if id != len(h.nodes) {
			return fmt.Errorf("revision: history has a gap at revision %d", len(h.nodes))
		}
		h.nodes = append(h.nodes, &Revision{h: h, id: id, readOnly: readOnly})
	}
	return rows.Err()
}

// SetWriteGuard installs a check run before anything is written to the world
// folder. A failing guard aborts the write.
func (h *History) SetWriteGuard(guard func() error) {
	h.guard = guard
}

func (h *History) checkGuard() error {
	if h.guard == nil {
		return nil
	}
	return h.guard()
}

func (h *History) Folder() *worldfolder.Folder { return h.folder }

func (h *History) Len() int { return len(h.nodes) }

func (h *History) Head() *Revision { return h.nodes[len(h.nodes)-1] }

func (h *History) Revision(i int) (*Revision, bool) {
	if i < 0 || i >= len(h.nodes) {
		return nil, false
	}
	return h.nodes[i], true
}

// Index returns the position of rev, or -1 when it is no longer part of the
// history.
func (h *History) Index(rev *Revision) int {
	if rev == nil || rev.h != h || rev.id >= len(h.nodes) || h.nodes[rev.id] != rev {
		return -1
	}
	return rev.id
}

// RequireRevisions makes the world folder itself read only, so every edit has
// to go through a revision.
func (h *History) RequireRevisions() error {
	h.requireRevisions = true
	return h.nodes[0].setReadOnly(true)
}

// CreateRevision drops every revision after from and appends a writable
// revision layered on it. Earlier revisions become read only.
func (h *History) CreateRevision(from *Revision) (*Revision, error) {
	idx := h.Index(from)
	if idx < 0 {
		return nil, ErrNoRevision
	}

	tx, err := h.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM chunks WHERE rev > ?`,
		`DELETE FROM files WHERE rev > ?`,
		`DELETE FROM revisions WHERE id > ?`,
	} {
		if _, err := tx.Exec(q, idx); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Exec(`UPDATE revisions SET read_only = 1 WHERE id <= ?`, idx); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(`INSERT INTO revisions(id, read_only) VALUES (?, 0)`, idx+1); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	h.nodes = h.nodes[:idx+1]
	for _, n := range h.nodes {
		n.readOnly = true
	}
	rev := &Revision{h: h, id: idx + 1}
	h.nodes = append(h.nodes, rev)
	return rev, nil
}

// CloseRevision freezes the head revision.
func (h *History) CloseRevision() error {
	return h.Head().setReadOnly(true)
}

// Changes reports every chunk and file touched by the revisions after the
// lower of the two positions up to and including the higher one.
func (h *History) Changes(from, to int) (*Changes, error) {
	lo, hi := from, to
	if lo > hi {
		lo, hi = hi, lo
	}
	changes := newChanges()

	rows, err := h.db.Query(`SELECT DISTINCT dim, cx, cz FROM chunks WHERE rev > ? AND rev <= ?`, lo, hi)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var dim string
		var c worldfolder.ChunkCoord
		if err := rows.Scan(&dim, &c.X, &c.Z); err != nil {
			rows.Close()
			return nil, err
		}
		changes.addChunk(dim, c)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = h.db.Query(`SELECT DISTINCT path FROM files WHERE rev > ? AND rev <= ?`, lo, hi)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		changes.Files[p] = struct{}{}
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return changes, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

// WriteAllChanges applies revisions 1 through selected to the world folder
// and resets the history to the folder alone.
func (h *History) WriteAllChanges(selected *Revision) error {
	idx := h.Index(selected)
	if idx < 0 {
		return ErrNoRevision
	}
	if err := h.checkGuard(); err != nil {
		return err
	}

	if idx > 0 {
		if err := h.applyChunks(idx); err != nil {
			return err
		}
		if err := h.applyFiles(idx); err != nil {
			return err
		}
	}

	for _, q := range []string{
		`DELETE FROM chunks`,
		`DELETE FROM files`,
		`DELETE FROM revisions WHERE id > 0`,
	} {
		if _, err := h.db.Exec(q); err != nil {
			return err
		}
	}
	h.nodes = h.nodes[:1]
	return h.nodes[0].setReadOnly(h.requireRevisions)
}

type chunkKey struct {
	dim string
	worldfolder.ChunkCoord
}

type pendingWrite struct {
	data    []byte
	deleted bool
}

func (h *History) applyChunks(upTo int) error {
	rows, err := h.db.Query(`SELECT dim, cx, cz, data, deleted FROM chunks WHERE rev <= ? ORDER BY rev`, upTo)
	if err != nil {
		return err
	}
	latest := make(map[chunkKey]pendingWrite)
	var order []chunkKey
	for rows.Next() {
		var k chunkKey
		var w pendingWrite
		if err := rows.Scan(&k.dim, &k.X, &k.Z, &w.data, &w.deleted); err != nil {
			rows.Close()
			return err
		}
		if _, seen := latest[k]; !seen {
			order = append(order, k)
		}
		latest[k] = w
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	for _, k := range order {
		w := latest[k]
		if w.deleted {
			err = h.folder.DeleteChunk(k.X, k.Z, k.dim)
		} else {
			err = h.folder.WriteChunkBytes(k.X, k.Z, k.dim, w.data)
		}
		if err != nil {
			return fmt.Errorf("revision: write chunk %d,%d %q: %w", k.X, k.Z, k.dim, err)
		}
	}
	return nil
}

func (h *History) applyFiles(upTo int) error {
	rows, err := h.db.Query(`SELECT path, data, deleted FROM files WHERE rev <= ? ORDER BY rev`, upTo)
	if err != nil {
		return err
	}
	latest := make(map[string]pendingWrite)
	var order []string
	for rows.Next() {
		var p string
		var w pendingWrite
		if err := rows.Scan(&p, &w.data, &w.deleted); err != nil {
			rows.Close()
			return err
		}
		if _, seen := latest[p]; !seen {
			order = append(order, p)
		}
		latest[p] = w
	}
	if err := closeRows(rows); err != nil {
		return err
	}

	for _, p := range order {
		w := latest[p]
		if w.deleted {
			err = h.folder.DeleteFile(p)
		} else {
			err = h.folder.WriteFile(p, w.data)
		}
		if err != nil {
			return fmt.Errorf("revision: write file %s: %w", p, err)
		}
	}
	return nil
}

func (h *History) Close() error {
	return h.db.Close()
}
