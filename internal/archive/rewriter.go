package archive

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"mangameta/internal/logging"
	"mangameta/internal/throttle"
)

const backupSuffix = ".backup"

// Rewriter performs atomic whole-archive rewrites with throttled output.
type Rewriter struct {
	throttle *throttle.Throttle
	logger   *slog.Logger

	// test hooks; nil in production
	beforeCommit func(path string) error
	afterBackup  func(path string) error
}

// NewRewriter returns a Rewriter. A nil throttle disables pacing.
func NewRewriter(limiter *throttle.Throttle, logger *slog.Logger) *Rewriter {
	return &Rewriter{
		throttle: limiter,
		logger:   logging.NewComponentLogger(logger, "archive"),
	}
}

// rewrite streams a new archive built by fill into a temp file and commits it over path.
func (r *Rewriter) rewrite(path string, fill func(zw *zip.Writer) error) error {
	r.recoverBackup(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(r.throttle.Writer(tmp))
	if err := fill(zw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize temp archive: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp archive: %w", err)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod temp archive: %w", err)
	}

	if err := r.commit(path, tmpPath); err != nil {
		return err
	}
	committed = true
	return nil
}

// commit swaps tmpPath into place through a backup of the original.
func (r *Rewriter) commit(path, tmpPath string) error {
	if r.beforeCommit != nil {
		if err := r.beforeCommit(path); err != nil {
			return err
		}
	}

	backup := path + backupSuffix
	if err := os.Rename(path, backup); err != nil {
		return fmt.Errorf("move original to backup: %w", err)
	}

	var swapErr error
	if r.afterBackup != nil {
		swapErr = r.afterBackup(path)
	}
	if swapErr == nil {
		swapErr = os.Rename(tmpPath, path)
	}
	if swapErr != nil {
		if err := os.Rename(backup, path); err != nil {
			return fmt.Errorf("swap temp archive: %w (restore original: %v)", swapErr, err)
		}
		return fmt.Errorf("swap temp archive: %w", swapErr)
	}

	if err := os.Remove(backup); err != nil {
		logging.WarnWithContext(r.logger, "failed to remove archive backup", "archive_backup_cleanup_failed",
			logging.String("path", backup),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the .backup file manually"),
			logging.String(logging.FieldImpact, "extra disk space used until removed"))
	}
	return nil
}

// recoverBackup restores an original left behind by an interrupted swap.
func (r *Rewriter) recoverBackup(path string) {
	backup := path + backupSuffix
	if _, err := os.Stat(backup); err != nil {
		return
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.Rename(backup, path); err == nil {
			r.logger.Info("restored archive from backup",
				logging.String(logging.FieldEventType, "archive_backup_restored"),
				logging.String("path", path))
		}
		return
	}
	// Original is intact; the backup is stale.
	_ = os.Remove(backup)
}

// copyRaw copies f into zw under name without recompressing its payload.
func copyRaw(zw *zip.Writer, f *zip.File, name string) error {
	hdr := f.FileHeader
	hdr.Name = name
	w, err := zw.CreateRaw(&hdr)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	src, err := f.OpenRaw()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("copy entry %s: %w", f.Name, err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}
