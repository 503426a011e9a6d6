package service

import (
	"path/filepath"
	"strings"

	hclog "github.com/hashicorp/go-hclog"

	providerout "provhost/internal/modules/provider/port/out"
)

type noopMetrics struct{}

func (noopMetrics) LoadFinished(string) {}
func (noopMetrics) Unloaded()           {}
func (noopMetrics) LoadedProviders(int) {}

func metricsOrNoop(m providerout.Metrics) providerout.Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

func loggerOrDefault(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}

// isWithin reports whether path lives under root.
func isWithin(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
