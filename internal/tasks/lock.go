package tasks

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"mangameta/internal/logging"
)

// Lock acquires the run lock for a task so two processes never drive the
// same task concurrently. The returned function releases it.
func (s *Store) Lock(id string) (func(), error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	lockPath := filepath.Join(s.dir, id+".lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire task lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskBusy, id)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("failed to release task lock",
				logging.String(logging.FieldTaskID, id),
				logging.Error(err))
		}
	}, nil
}
