package archive

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm       = 0o755
	defaultDBPath        = "/var/lib/heartbeatd/heartbeats.db"
	defaultDrainInterval = 5 * time.Second
	defaultRecentLimit   = 20
	maxRecentLimit       = 1000
)

type Config struct {
	DBPath  string
	Enabled bool
	// BackupDir receives a copy of the database before a schema change.
	// Defaults to a backups directory next to DBPath.
	BackupDir string
}

func DefaultConfig() Config {
	return Config{
		DBPath:  defaultDBPath,
		Enabled: true,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if the archive is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	return nil
}

func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
