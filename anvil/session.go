package anvil

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const sessionLockName = "session.lock"

// SessionLock is the advisory single-writer token of a world. It only
// detects that another process rewrote the token after Acquire.
type SessionLock struct {
	path  string
	now   func() time.Time
	stamp int64
	held  bool
}

func NewSessionLock(root string, now func() time.Time) *SessionLock {
	if now == nil {
		now = time.Now
	}
	return &SessionLock{path: filepath.Join(root, sessionLockName), now: now}
}

// Acquire writes the current time in milliseconds and forces it to stable
// storage before returning.
func (l *SessionLock) Acquire() error {
	stamp := l.now().UnixMilli()

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("anvil: acquire session lock: %w", err)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(stamp))
	if _, err := f.Write(buf[:]); err != nil {
		f.Close()
		return fmt.Errorf("anvil: acquire session lock: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("anvil: acquire session lock: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("anvil: acquire session lock: %w", err)
	}

	l.stamp = stamp
	l.held = true
	return nil
}

// Check fails with ErrSessionLockLost unless the token on disk is still the
// one written by Acquire.
func (l *SessionLock) Check() error {
	if !l.held {
		return fmt.Errorf("%w: lock was never acquired", ErrSessionLockLost)
	}
	stamp, err := l.read()
	if err != nil {
		return fmt.Errorf("anvil: check session lock: %w", err)
	}
	if stamp != l.stamp {
		return fmt.Errorf("%w: expected %d, found %d", ErrSessionLockLost, l.stamp, stamp)
	}
	return nil
}

// read returns the stored token, or -1 when the file is missing or is not
// exactly one token long.
func (l *SessionLock) read() (int64, error) {
	buf, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return -1, nil
		}
		return 0, err
	}
	if len(buf) != 8 {
		return -1, nil
	}
	return int64(binary.BigEndian.Uint64(buf)), nil
}

func (l *SessionLock) Stamp() int64 { return l.stamp }
