package revision

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/astei/anvilworld/worldfolder"
)

// Revision is one position of a History. Position 0 reads and writes the
// world folder directly; later positions read through their ancestors and
// write to the history database.
type Revision struct {
	h        *History
	id       int
	readOnly bool
}

func (r *Revision) Index() int     { return r.id }
func (r *Revision) ReadOnly() bool { return r.readOnly }
func (r *Revision) IsRoot() bool   { return r.id == 0 }

func (r *Revision) setReadOnly(v bool) error {
	if _, err := r.h.db.Exec(`UPDATE revisions SET read_only = ? WHERE id = ?`, v, r.id); err != nil {
		return err
	}
	r.readOnly = v
	return nil
}

func (r *Revision) checkWritable() error {
	if r.readOnly {
		return fmt.Errorf("%w: %d", ErrReadOnlyRevision, r.id)
	}
	if r.IsRoot() {
		return r.h.checkGuard()
	}
	return nil
}

// SetInfo attaches a JSON-encodable value to the revision.
func (r *Revision) SetInfo(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = r.h.db.Exec(`UPDATE revisions SET info = ? WHERE id = ?`, data, r.id)
	return err
}

// Info decodes the attached value into dst. It reports false when nothing is
// attached.
func (r *Revision) Info(dst interface{}) (bool, error) {
	raw, err := r.RawInfo()
	if err != nil || raw == nil {
		return false, err
	}
	return true, json.Unmarshal(raw, dst)
}

func (r *Revision) RawInfo() (json.RawMessage, error) {
	var data []byte
	err := r.h.db.QueryRow(`SELECT info FROM revisions WHERE id = ?`, r.id).Scan(&data)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return json.RawMessage(data), nil
}

// lookupChunk finds the newest row for the chunk at or below this revision.
func (r *Revision) lookupChunk(cx, cz int, dim string) (data []byte, deleted, found bool, err error) {
	err = r.h.db.QueryRow(
		`SELECT data, deleted FROM chunks WHERE dim = ? AND cx = ? AND cz = ? AND rev BETWEEN 1 AND ? ORDER BY rev DESC LIMIT 1`,
		dim, cx, cz, r.id,
	).Scan(&data, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, false, nil
	}
	if err != nil {
		return nil, false, false, err
	}
	return data, deleted, true, nil
}

func (r *Revision) ReadChunkBytes(cx, cz int, dim string) ([]byte, error) {
	if !r.IsRoot() {
		data, deleted, found, err := r.lookupChunk(cx, cz, dim)
		if err != nil {
			return nil, err
		}
		if found {
			if deleted {
				return nil, worldfolder.ErrChunkNotPresent
			}
			return data, nil
		}
	}
	return r.h.folder.ReadChunkBytes(cx, cz, dim)
}

func (r *Revision) WriteChunkBytes(cx, cz int, dim string, data []byte) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	if r.IsRoot() {
		return r.h.folder.WriteChunkBytes(cx, cz, dim, data)
	}
	return r.putChunk(cx, cz, dim, data, false)
}

func (r *Revision) DeleteChunk(cx, cz int, dim string) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	if r.IsRoot() {
		return r.h.folder.DeleteChunk(cx, cz, dim)
	}
	return r.putChunk(cx, cz, dim, nil, true)
}

func (r *Revision) putChunk(cx, cz int, dim string, data []byte, deleted bool) error {
	_, err := r.h.db.Exec(
		`INSERT INTO chunks(rev, dim, cx, cz, data, deleted) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(rev, dim, cx, cz) DO UPDATE SET data = excluded.data, deleted = excluded.deleted`,
		r.id, dim, cx, cz, data, deleted,
	)
	return err
}

func (r *Revision) ContainsChunk(cx, cz int, dim string) (bool, error) {
	if !r.IsRoot() {
		_, deleted, found, err := r.lookupChunk(cx, cz, dim)
		if err != nil {
			return false, err
		}
		if found {
			return !deleted, nil
		}
	}
	return r.h.folder.ContainsChunk(cx, cz, dim)
}

// ChunkPositions lists the chunks of dim visible at this revision, sorted by X
// then Z.
func (r *Revision) ChunkPositions(dim string) ([]worldfolder.ChunkCoord, error) {
	base, err := r.h.folder.ChunkPositions(dim)
	if err != nil || r.IsRoot() {
		return base, err
	}

	present := make(map[worldfolder.ChunkCoord]bool, len(base))
	for _, c := range base {
		present[c] = true
	}
	rows, err := r.h.db.Query(`SELECT cx, cz, deleted FROM chunks WHERE dim = ? AND rev BETWEEN 1 AND ? ORDER BY rev`, dim, r.id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var c worldfolder.ChunkCoord
		var deleted bool
		if err := rows.Scan(&c.X, &c.Z, &deleted); err != nil {
			rows.Close()
			return nil, err
		}
		present[c] = !deleted
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	positions := make([]worldfolder.ChunkCoord, 0, len(present))
	for c, ok := range present {
		if ok {
			positions = append(positions, c)
		}
	}
	worldfolder.SortCoords(positions)
	return positions, nil
}

func (r *Revision) ChunkCount(dim string) (int, error) {
	positions, err := r.ChunkPositions(dim)
	return len(positions), err
}

func (r *Revision) ListDimensions() ([]string, error) {
	dims, err := r.h.folder.ListDimensions()
	if err != nil || r.IsRoot() {
		return dims, err
	}

	known := make(map[string]bool, len(dims))
	for _, d := range dims {
		known[d] = true
	}
	rows, err := r.h.db.Query(`SELECT DISTINCT dim FROM chunks WHERE rev BETWEEN 1 AND ? AND deleted = 0`, r.id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return nil, err
		}
		if !known[d] {
			known[d] = true
			dims = append(dims, d)
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	sort.Strings(dims[1:])
	return dims, nil
}

func (r *Revision) lookupFile(name string) (data []byte, deleted, found bool, err error) {
	err = r.h.db.QueryRow(
		`SELECT data, deleted FROM files WHERE path = ? AND rev BETWEEN 1 AND ? ORDER BY rev DESC LIMIT 1`,
		name, r.id,
	).Scan(&data, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, false, nil
	}
	if err != nil {
		return nil, false, false, err
	}
	return data, deleted, true, nil
}

func (r *Revision) ReadFile(name string) ([]byte, error) {
	if !r.IsRoot() {
		data, deleted, found, err := r.lookupFile(name)
		if err != nil {
			return nil, err
		}
		if found {
			if deleted {
				return nil, fmt.Errorf("%w: %s", worldfolder.ErrFileNotFound, name)
			}
			return data, nil
		}
	}
	return r.h.folder.ReadFile(name)
}

func (r *Revision) WriteFile(name string, data []byte) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	if r.IsRoot() {
		return r.h.folder.WriteFile(name, data)
	}
	return r.putFile(name, data, false)
}

func (r *Revision) DeleteFile(name string) error {
	if err := r.checkWritable(); err != nil {
		return err
	}
	if r.IsRoot() {
		return r.h.folder.DeleteFile(name)
	}
	return r.putFile(name, nil, true)
}

func (r *Revision) putFile(name string, data []byte, deleted bool) error {
	if data == nil && !deleted {
		data = []byte{}
	}
	_, err := r.h.db.Exec(
		`INSERT INTO files(rev, path, data, deleted) VALUES (?, ?, ?, ?)
		ON CONFLICT(rev, path) DO UPDATE SET data = excluded.data, deleted = excluded.deleted`,
		r.id, name, data, deleted,
	)
	return err
}

func (r *Revision) ContainsFile(name string) (bool, error) {
	if !r.IsRoot() {
		_, deleted, found, err := r.lookupFile(name)
		if err != nil {
			return false, err
		}
		if found {
			return !deleted, nil
		}
	}
	return r.h.folder.ContainsFile(name)
}

// ListFolder lists the files directly inside dir visible at this revision.
func (r *Revision) ListFolder(dir string) ([]string, error) {
	base, err := r.h.folder.ListFolder(dir)
	if err != nil || r.IsRoot() {
		return base, err
	}

	present := make(map[string]bool, len(base))
	for _, p := range base {
		present[p] = true
	}
	rows, err := r.h.db.Query(`SELECT path, deleted FROM files WHERE rev BETWEEN 1 AND ? ORDER BY rev`, r.id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var p string
		var deleted bool
		if err := rows.Scan(&p, &deleted); err != nil {
			rows.Close()
			return nil, err
		}
		if path.Dir(p) == path.Clean(dir) {
			present[p] = !deleted
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(present))
	for p, ok := range present {
		if ok {
			names = append(names, p)
		}
	}
	sort.Strings(names)
	return names, nil
}
