// Package logger builds the process logger from configuration.
package logger

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/mcp-pod/pkg/config"
)

// New returns a logger writing to w at the configured level and format.
// Unknown values fall back to info level and text output.
func New(cfg *config.Config, w io.Writer) *log.Logger {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = log.InfoLevel
	}

	formatter := log.TextFormatter
	switch cfg.Log.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		Prefix:          cfg.Server.Name,
		ReportTimestamp: true,
	})
}
