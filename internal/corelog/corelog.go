// Package corelog provides the package-wide structured logger used by the
// tcp core, replacing the teacher's bare log.Printf call sites with
// zerolog, in the style of the reliable-UDP TCP clone in
// _examples/other_examples (fess932-tcpconn), which logs through
// github.com/rs/zerolog/log rather than the standard library logger
package corelog

import (
	"os"

	"github.com/rs/zerolog"
)

// L is the logger used throughout the tcp core. It defaults to a
// console-friendly writer at info level; callers embedding the core can
// replace it wholesale with Set
var L = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
	With().Timestamp().Logger().
	Level(zerolog.InfoLevel)

// Set replaces the package logger, e.g. to redirect to JSON output or to
// change verbosity
func Set(l zerolog.Logger) {
	L = l
}
