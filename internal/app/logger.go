package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/manish0301/subscription-pro/pkg/config"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

// NewLogger builds the process logger for a binary. Production logs JSON to
// stdout; everything else logs text to w, at debug level in development.
func NewLogger(cfg *config.Config, service, version string, w io.Writer) *slog.Logger {
	logCfg := observability.DefaultLogConfig()
	logCfg.ServiceName = service
	logCfg.ServiceVersion = version
	if w != nil {
		logCfg.Output = w
	}

	if cfg == nil {
		return observability.NewLogger(logCfg)
	}

	logCfg.Level = cfg.LogLevel
	switch {
	case cfg.IsProduction():
		logCfg.Format = observability.LogFormatJSON
		logCfg.Output = os.Stdout
		logCfg.AddSource = true
	case cfg.IsDevelopment():
		logCfg.Level = "debug"
	}
	return observability.NewLogger(logCfg)
}
