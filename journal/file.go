package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/culda/skalpit/account"
)

// File writes one JSON document per closed trade into a directory,
// named by close timestamp: trade-<unix>.json. One file per close
// keeps the log append-only and makes partial writes harmless.
type File struct {
	dir string
}

// NewFile creates the directory if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &File{dir: dir}, nil
}

type closeDocument struct {
	Trade  *account.Trade                `json:"trade"`
	Orders map[string]account.OrderEntry `json:"orders"`
}

// ExportClose implements Journal.
func (f *File) ExportClose(t *account.Trade, orders map[string]account.OrderEntry) error {
	closedAt := time.Now().UTC()
	if t.ClosedAt != nil {
		closedAt = t.ClosedAt.UTC()
	}
	name := filepath.Join(f.dir, fmt.Sprintf("trade-%d.json", closedAt.Unix()))

	data, err := json.MarshalIndent(closeDocument{Trade: t, Orders: orders}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trade %s: %w", t.ID, err)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("write trade %s: %w", t.ID, err)
	}
	return nil
}

// Close implements Journal.
func (f *File) Close() error { return nil }
