// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"go.elastic.co/ecszerolog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatECS     = "ecs"
)

// New returns a logger writing to w. format selects plain JSON, a human
// readable console writer, or ECS-shaped JSON for Elastic ingestion. An empty
// level means info.
func New(w io.Writer, format, level string) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", level, err)
		}
		lvl = parsed
	}

	var ctx zerolog.Context
	switch format {
	case FormatJSON, "":
		ctx = zerolog.New(w).With().Timestamp()
	case FormatConsole:
		ctx = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp()
	case FormatECS:
		// ecszerolog stamps @timestamp itself.
		ctx = ecszerolog.New(w).With()
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", format)
	}

	return ctx.Str("service", "caretrail").Logger().Level(lvl), nil
}

// FormatFor picks console output in development and JSON elsewhere unless a
// format was set explicitly.
func FormatFor(env, format string) string {
	if format != "" {
		return format
	}
	if env == "development" {
		return FormatConsole
	}
	return FormatJSON
}
