package service

import (
	"errors"
	"os"
	"path/filepath"
)

// migrateLegacySettings moves {settingsRoot}/{scope}/{id}.json into the
// per-repository settings dir. Failures never block a load.
func (l *Loader) migrateLegacySettings(id, settingsDir string) {
	legacy := l.layout.LegacySettingsFile(id)
	if _, err := os.Stat(legacy); err != nil {
		return
	}
	target := filepath.Join(settingsDir, id+".json")
	if _, err := os.Stat(target); err == nil {
		l.logger.Warn("legacy settings left in place, target already exists", "id", id, "legacy", legacy)
		return
	} else if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("could not inspect settings target", "path", target, "error", err)
		return
	}
	if err := os.Rename(legacy, target); err != nil {
		l.logger.Warn("settings migration failed", "id", id, "error", err)
		return
	}
	l.logger.Info("migrated legacy settings", "id", id, "to", target)
}
