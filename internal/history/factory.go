package history

import (
	"fmt"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/core"
)

// Open constructs the recorder selected by configuration.
func Open(cfg config.HistoryConfig) (core.Recorder, error) {
	switch cfg.Backend {
	case "json":
		return NewJSONLRecorder(cfg.Dir)
	case "sqlite":
		return NewSQLiteRecorder(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}
