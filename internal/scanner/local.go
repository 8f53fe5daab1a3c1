package scanner

import (
	"context"
	"fmt"
	"os"

	"github.com/imHansiy/mediadex/internal/models"
)

// LocalLister lists directories straight off the local filesystem. It is
// the Lister used when no AList endpoint is configured, which covers the
// one-shot CLI scan and plain single-host deployments.
type LocalLister struct{}

func (LocalLister) ListDirectory(ctx context.Context, dirPath string) ([]models.RawEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dirPath, err)
	}

	entries := make([]models.RawEntry, 0, len(dirEntries))
	for _, e := range dirEntries {
		entry := models.RawEntry{
			Name:  e.Name(),
			IsDir: e.IsDir(),
		}
		if !e.IsDir() {
			if info, err := e.Info(); err == nil {
				entry.Size = info.Size()
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
