package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zip"

	"mangameta/internal/logging"
	"mangameta/internal/services"
)

// Normalize flattens a nested archive in place. It returns false without
// touching the file when the archive is already flat or empty.
func (r *Rewriter) Normalize(ctx context.Context, path string) (bool, error) {
	structure, err := DetectStructure(path)
	if err != nil {
		return false, services.Wrap(services.ErrStructure, "normalize", "detect structure", path, err)
	}
	if structure.Layout != LayoutNested {
		return false, nil
	}

	logger := logging.WithContext(ctx, r.logger)
	prefix := structure.Folder + "/"

	err = r.rewrite(path, func(zw *zip.Writer) error {
		rc, err := zip.OpenReader(path)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer rc.Close()

		for _, f := range rc.File {
			name, ok := flattenName(f.Name, structure.Folder, prefix)
			if !ok {
				continue
			}
			if err := copyRaw(zw, f, name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, services.Wrap(services.ErrStructure, "normalize", "rewrite archive", path, err)
	}

	logger.Info("flattened nested archive",
		logging.String(logging.FieldEventType, "archive_normalized"),
		logging.String("folder", structure.Folder))
	return true, nil
}

// flattenName strips the wrapping folder. Directory entries and the folder
// marker itself are dropped.
func flattenName(name, folder, prefix string) (string, bool) {
	if name == folder || name == prefix {
		return "", false
	}
	stripped := strings.TrimPrefix(name, prefix)
	if stripped == "" || strings.HasSuffix(stripped, "/") {
		return "", false
	}
	return stripped, true
}
