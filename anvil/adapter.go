package anvil

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/astei/anvilworld/nbt"
	"github.com/astei/anvilworld/revision"
	"github.com/astei/anvilworld/worldfolder"
)

const (
	levelDatName    = "level.dat"
	levelDatOldName = "level.dat_old"

	DefaultHistoryDir = ".anvilworld"
)

type Options struct {
	// Create makes a new world. It fails if the folder already holds one.
	Create bool
	// ReadOnly binds the world folder directly, without history or lock.
	ReadOnly bool
	// Resume keeps the history left by an earlier session instead of
	// starting over.
	Resume bool

	// MinHeight and MaxHeight bound the world in blocks. Both zero means
	// DefaultBounds.
	MinHeight int
	MaxHeight int

	// HistoryDir holds the revision database. Relative paths are taken from
	// the world root; empty means DefaultHistoryDir.
	HistoryDir string

	Logger *logrus.Entry
	Now    func() time.Time
}

// Adapter gives chunk, player and metadata access to one Anvil world, with
// edits recorded in revisions of a history. An adapter is not safe for
// concurrent use.
type Adapter struct {
	root     string
	readOnly bool
	bounds   Bounds

	folder   *worldfolder.Folder
	history  *revision.History
	selected *revision.Revision
	store    Store
	lock     *SessionLock

	Metadata *WorldMetadata

	log *logrus.Entry
	now func() time.Time
}

// Open opens or creates the world at path, which may name the world folder
// or its level.dat.
func Open(path string, opts Options) (_ *Adapter, err error) {
	if opts.Create && opts.ReadOnly {
		return nil, fmt.Errorf("%w: create and read only are mutually exclusive", ErrInvalidOptions)
	}
	bounds := DefaultBounds
	if opts.MinHeight != 0 || opts.MaxHeight != 0 {
		bounds = Bounds{Min: opts.MinHeight, Max: opts.MaxHeight}
	}
	if bounds.Max <= bounds.Min {
		return nil, fmt.Errorf("%w: max height %d must exceed min height %d", ErrInvalidOptions, bounds.Max, bounds.Min)
	}

	root := resolveRoot(path)
	if err := checkTarget(root, opts.Create); err != nil {
		return nil, err
	}

	a := &Adapter{
		root:     root,
		readOnly: opts.ReadOnly,
		bounds:   bounds,
		log:      opts.Logger,
		now:      opts.Now,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.log == nil {
		a.log = logrus.NewEntry(logrus.StandardLogger())
	}
	a.log = a.log.WithField("world", root)
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.folder, err = worldfolder.Open(root, opts.ReadOnly); err != nil {
		return nil, err
	}
	if opts.ReadOnly {
		a.store = a.folder
	} else {
		if a.history, err = revision.Open(a.folder, historyPath(root, opts.HistoryDir), opts.Resume); err != nil {
			return nil, err
		}
		a.history.SetWriteGuard(a.CheckSessionLock)
		a.selectRevision(a.history.Head())

		a.lock = NewSessionLock(root, a.now)
		if err = a.lock.Acquire(); err != nil {
			return nil, err
		}
	}

	if opts.Create {
		a.Metadata = a.defaultMetadata()
		if err = a.SyncToDisk(); err != nil {
			return nil, err
		}
	} else {
		a.loadMetadata()
	}

	if v := a.Metadata.Version(); v != VersionAnvil {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	return a, nil
}

func resolveRoot(path string) string {
	switch filepath.Base(path) {
	case levelDatName, levelDatOldName:
		return filepath.Dir(path)
	}
	return path
}

func checkTarget(root string, create bool) error {
	fi, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		if !create {
			return fmt.Errorf("%w: %s", ErrWorldNotFound, root)
		}
		return os.Mkdir(root, 0o755)
	}
	if err != nil {
		return err
	}
	if create {
		if !fi.IsDir() {
			return fmt.Errorf("%w: %s", ErrExists, root)
		}
		if _, err := os.Stat(filepath.Join(root, levelDatName)); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, filepath.Join(root, levelDatName))
		}
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotAWorld, root)
	}
	return nil
}

func historyPath(root, dir string) string {
	if dir == "" {
		dir = DefaultHistoryDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return filepath.Join(dir, "history.db")
}

// CanOpenFile reports whether path is an Anvil world folder or the level.dat
// of one. Pocket Edition folders are rejected.
func CanOpenFile(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	if !fi.IsDir() {
		switch filepath.Base(path) {
		case levelDatName, levelDatOldName:
			path = filepath.Dir(path)
		default:
			return false
		}
	}
	if _, err := os.Stat(filepath.Join(path, "chunks.dat")); err == nil {
		return false
	}
	for _, name := range []string{levelDatName, levelDatOldName} {
		if _, err := os.Stat(filepath.Join(path, name)); err == nil {
			return true
		}
	}
	return false
}

func (a *Adapter) defaultMetadata() *WorldMetadata {
	m := NewMetadata()
	m.SetLastPlayed(a.now().UnixMilli())
	m.SetRandomSeed(int64(rand.Uint64()))
	m.SetSizeOnDisk(0)
	m.SetTime(1)
	m.SetLevelName(filepath.Base(a.root))
	return m
}

// loadMetadata reads level.dat, falling back to level.dat_old and then to
// fresh defaults. Either fallback leaves the metadata dirty.
func (a *Adapter) loadMetadata() {
	m, err := a.readMetadata(levelDatName)
	if err == nil {
		a.Metadata = m
		return
	}
	a.log.WithError(err).Info("Error loading level.dat, trying level.dat_old")

	m, err = a.readMetadata(levelDatOldName)
	if err == nil {
		m.Dirty = true
		a.Metadata = m
		a.log.Info("level.dat restored from backup")
		return
	}
	a.log.WithError(err).Info("Error loading level.dat_old, initializing with defaults")
	a.Metadata = a.defaultMetadata()
}

func (a *Adapter) readMetadata(name string) (*WorldMetadata, error) {
	buf, err := a.store.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return ParseMetadata(buf)
}

func (a *Adapter) Root() string       { return a.root }
func (a *Adapter) ReadOnly() bool     { return a.readOnly }
func (a *Adapter) Bounds() Bounds     { return a.bounds }
func (a *Adapter) String() string     { return fmt.Sprintf("Adapter(%q)", a.root) }
func (a *Adapter) Store() Store       { return a.store }
func (a *Adapter) Lock() *SessionLock { return a.lock }

// CheckSessionLock fails with ErrSessionLockLost when another program has
// taken the world since Open. Read-only adapters never hold the lock.
func (a *Adapter) CheckSessionLock() error {
	if a.readOnly {
		return fmt.Errorf("%w: world is opened read only", ErrSessionLockLost)
	}
	return a.lock.Check()
}

// SyncToDisk writes the metadata to the selected revision if it changed.
func (a *Adapter) SyncToDisk() error {
	if !a.Metadata.Dirty {
		return nil
	}
	if a.readOnly {
		return ErrReadOnly
	}
	buf, err := a.Metadata.Encode()
	if err != nil {
		return err
	}
	if err := a.store.WriteFile(levelDatName, buf); err != nil {
		return err
	}
	a.Metadata.Dirty = false
	return nil
}

// SaveChanges writes every revision up to the selected one into the world
// folder and selects the resulting head.
func (a *Adapter) SaveChanges() error {
	if a.readOnly {
		return ErrReadOnly
	}
	if err := a.CheckSessionLock(); err != nil {
		return err
	}
	if err := a.history.WriteAllChanges(a.selected); err != nil {
		return err
	}
	a.selectRevision(a.history.Head())
	a.log.Info("Changes written to world folder")
	return nil
}

func (a *Adapter) Close() error {
	var firstErr error
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			firstErr = err
		}
		a.history = nil
	}
	if a.folder != nil {
		if err := a.folder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.folder = nil
	}
	return firstErr
}

// --- Revisions ---

func (a *Adapter) selectRevision(rev *revision.Revision) {
	a.selected = rev
	a.store = rev
}

// RequireRevisions makes the world folder read only so that every edit needs
// a revision.
func (a *Adapter) RequireRevisions() error {
	if a.readOnly {
		return ErrReadOnly
	}
	return a.history.RequireRevisions()
}

// CreateRevision starts a writable revision on top of the selected one.
// Revisions after the selected one are discarded.
func (a *Adapter) CreateRevision() error {
	if a.readOnly {
		return ErrReadOnly
	}
	rev, err := a.history.CreateRevision(a.selected)
	if err != nil {
		return err
	}
	a.selectRevision(rev)
	return nil
}

// CloseRevision freezes the head revision.
func (a *Adapter) CloseRevision() error {
	if a.readOnly {
		return ErrReadOnly
	}
	return a.history.CloseRevision()
}

// SelectedRevision returns the index of the selected revision.
func (a *Adapter) SelectedRevision() int {
	if a.readOnly {
		return 0
	}
	return a.history.Index(a.selected)
}

// RevisionCount returns the length of the history. A read-only adapter has
// no history.
func (a *Adapter) RevisionCount() int {
	if a.readOnly {
		return 0
	}
	return a.history.Len()
}

// SelectRevision selects revision index and returns what differs from the
// previous selection. An index outside the history reports false and keeps
// the selection.
func (a *Adapter) SelectRevision(index int) (*revision.Changes, bool) {
	if a.readOnly {
		return nil, false
	}
	rev, ok := a.history.Revision(index)
	if !ok {
		return nil, false
	}
	changes, err := a.history.Changes(a.history.Index(a.selected), index)
	if err != nil {
		a.log.WithError(err).Error("Could not compute revision changes")
		return nil, false
	}
	a.selectRevision(rev)
	return changes, true
}

// SetRevisionInfo attaches a JSON-encodable value to the selected revision.
func (a *Adapter) SetRevisionInfo(info interface{}) error {
	if a.readOnly {
		return ErrReadOnly
	}
	return a.selected.SetInfo(info)
}

// RevisionInfo decodes the selected revision's info into dst and reports
// whether any was attached.
func (a *Adapter) RevisionInfo(dst interface{}) (bool, error) {
	if a.readOnly {
		return false, nil
	}
	return a.selected.Info(dst)
}

type RevisionEntry struct {
	Index int
	Info  json.RawMessage
}

// RevisionIter walks the history in creation order. Info is read as the
// iterator reaches each revision.
type RevisionIter struct {
	a    *Adapter
	next int
	err  error
}

// ListRevisions returns an iterator over the revisions of the history.
func (a *Adapter) ListRevisions() *RevisionIter {
	return &RevisionIter{a: a}
}

func (it *RevisionIter) Next() (RevisionEntry, bool) {
	if it.err != nil || it.a.readOnly || it.next >= it.a.history.Len() {
		return RevisionEntry{}, false
	}
	rev, _ := it.a.history.Revision(it.next)
	info, err := rev.RawInfo()
	if err != nil {
		it.err = err
		return RevisionEntry{}, false
	}
	it.next++
	return RevisionEntry{Index: rev.Index(), Info: info}, true
}

func (it *RevisionIter) Err() error { return it.err }

// Reset rewinds the iterator to the first revision.
func (it *RevisionIter) Reset() {
	it.next = 0
	it.err = nil
}

// --- Dimensions and chunks ---

func (a *Adapter) ListDimensions() ([]string, error) {
	return a.store.ListDimensions()
}

func (a *Adapter) ChunkCount(dim string) (int, error) {
	return a.store.ChunkCount(dim)
}

func (a *Adapter) ChunkPositions(dim string) ([]worldfolder.ChunkCoord, error) {
	return a.store.ChunkPositions(dim)
}

func (a *Adapter) ContainsChunk(cx, cz int, dim string) (bool, error) {
	return a.store.ContainsChunk(cx, cz, dim)
}

// ReadChunk decodes the chunk at cx, cz. A missing chunk is
// worldfolder.ErrChunkNotPresent; a record that cannot be decoded is a
// *ChunkFormatError.
func (a *Adapter) ReadChunk(cx, cz int, dim string) (*ChunkData, error) {
	data, err := a.store.ReadChunkBytes(cx, cz, dim)
	if err != nil {
		if errors.Is(err, worldfolder.ErrInvalidCompression) || errors.Is(err, worldfolder.ErrInvalidChunkLength) {
			return nil, &ChunkFormatError{CX: cx, CZ: cz, Dim: dim, Err: err}
		}
		return nil, err
	}

	root, err := nbt.Load(data)
	if err != nil {
		return nil, &ChunkFormatError{CX: cx, CZ: cz, Dim: dim, Err: err}
	}
	chunk, err := LoadChunkData(cx, cz, dim, a.bounds, root)
	if err != nil {
		return nil, &ChunkFormatError{CX: cx, CZ: cz, Dim: dim, Err: err}
	}
	a.log.WithFields(logrus.Fields{"cx": cx, "cz": cz, "dim": dim, "bytes": len(data)}).Debug("Chunk loaded")
	return chunk, nil
}

// WriteChunk stores the chunk in the selected revision.
func (a *Adapter) WriteChunk(c *ChunkData) error {
	if a.readOnly {
		return ErrReadOnly
	}
	buf, err := nbt.Save(c.Record(), false)
	if err != nil {
		return err
	}
	if err := a.store.WriteChunkBytes(c.CX, c.CZ, c.Dim, buf); err != nil {
		return err
	}
	c.Dirty = false
	a.log.WithFields(logrus.Fields{"cx": c.CX, "cz": c.CZ, "dim": c.Dim, "bytes": len(buf)}).Debug("Chunk saved")
	return nil
}

// CreateChunk stores and returns a new empty chunk. It fails with ErrExists
// when the position already holds one.
func (a *Adapter) CreateChunk(cx, cz int, dim string) (*ChunkData, error) {
	if a.readOnly {
		return nil, ErrReadOnly
	}
	exists, err := a.store.ContainsChunk(cx, cz, dim)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: chunk %d,%d in dim %q", ErrExists, cx, cz, dim)
	}
	c := NewChunkData(cx, cz, dim, a.bounds)
	if err := a.WriteChunk(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (a *Adapter) DeleteChunk(cx, cz int, dim string) error {
	if a.readOnly {
		return ErrReadOnly
	}
	return a.store.DeleteChunk(cx, cz, dim)
}
