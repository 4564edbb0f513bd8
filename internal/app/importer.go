package app

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/example/filedupe/internal/logging"
	"github.com/example/filedupe/internal/ports/secondary"
)

// ItemRegistrar registers new managed items.
type ItemRegistrar interface {
	Create(ctx context.Context, item *secondary.ManagedItem, filename string) error
	ExistsByLocator(ctx context.Context, locator string) (bool, error)
}

// Locator maps a local path to a managed item locator.
type Locator interface {
	Locator(path string) (string, error)
}

// ImportResult counts what an import did.
type ImportResult struct {
	Added    int
	Existing int
}

// Importer registers files found on disk as managed items.
type Importer struct {
	items    ItemRegistrar
	locators Locator
}

// NewImporter creates an importer.
func NewImporter(items ItemRegistrar, locators Locator) *Importer {
	return &Importer{items: items, locators: locators}
}

// Import walks dir and registers every regular file that is not yet known.
// dir must lie under the files root.
func (im *Importer) Import(ctx context.Context, dir string) (*ImportResult, error) {
	logger := logging.ForContext(ctx, "importer")
	result := &ImportResult{}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}

		locator, err := im.locators.Locator(path)
		if err != nil {
			return err
		}
		exists, err := im.items.ExistsByLocator(ctx, locator)
		if err != nil {
			return err
		}
		if exists {
			result.Existing++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}
		mimeType, err := detectMimeType(path)
		if err != nil {
			return err
		}

		item := &secondary.ManagedItem{Size: info.Size(), MimeType: mimeType, Locator: locator}
		if err := im.items.Create(ctx, item, d.Name()); err != nil {
			return err
		}
		logger.Debug().Int64("fid", item.ID).Str("locator", locator).Str("mime", mimeType).Msg("Registered file")
		result.Added++
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("failed to import %s: %w", dir, err)
	}

	logger.Info().Int("added", result.Added).Int("existing", result.Existing).Msg("Import finished")
	return result, nil
}

// detectMimeType prefers the extension and falls back to sniffing content.
func detectMimeType(path string) (string, error) {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return baseMediaType(t), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return baseMediaType(http.DetectContentType(head[:n])), nil
}

func baseMediaType(t string) string {
	if mediaType, _, err := mime.ParseMediaType(t); err == nil {
		return mediaType
	}
	return t
}
