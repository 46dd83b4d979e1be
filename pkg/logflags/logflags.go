// Package logflags configures structured logging for the server, gated by
// the CLI's -d flag. Adapted from delve's pkg/logflags: the same
// package-level flag plus makeLogger(flag, fields) shape, narrowed from
// delve's many log domains (gdbwire, rpc, fncall, ...) down to the two this
// stub actually has -- the wire protocol and the dump/server lifecycle.
package logflags

import (
	"io"
	"io/ioutil"
	"log"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var wire = false

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New()
	logger.Out = traceOutput()
	entry := logger.WithFields(fields)
	entry.Logger.Level = logrus.DebugLevel
	if !flag {
		entry.Logger.Level = logrus.PanicLevel
	}
	return entry
}

// traceOutput returns stdout wrapped for ANSI color passthrough on
// Windows, or a colorable no-op on any other platform, and disables color
// entirely when stdout is not a terminal -- same isatty gate as
// pkg/terminal/out.go uses before enabling its pager and syntax
// highlighting.
func traceOutput() io.Writer {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return colorable.NewColorableStdout()
	}
	return colorable.NewNonColorable(os.Stdout)
}

// Wire reports whether the RSP wire protocol (packets in and out) should be
// traced.
func Wire() bool {
	return wire
}

// WireLogger returns a logger for individual RSP packets.
func WireLogger() *logrus.Entry {
	return makeLogger(wire, logrus.Fields{"layer": "rsp"})
}

// ServerLogger returns a logger for dump loading and server lifecycle
// events (listen, accept, detach, fatal startup errors). It always logs at
// info level or above, independent of -d, since these are one-shot
// lifecycle events rather than a packet-by-packet trace.
func ServerLogger() *logrus.Entry {
	logger := logrus.New()
	logger.Out = traceOutput()
	logger.Level = logrus.InfoLevel
	return logger.WithField("layer", "server")
}

// Setup applies the verbose flag from the CLI. verbose=true enables
// wire-protocol tracing; verbose=false discards the standard logger's
// output entirely, matching delve's Setup(false, "") behavior.
func Setup(verbose bool) {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !verbose {
		log.SetOutput(ioutil.Discard)
		return
	}
	wire = true
}
