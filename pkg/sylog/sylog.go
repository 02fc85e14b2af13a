// Copyright (c) 2025-2026, Sylabs Inc. All rights reserved.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

// Package sylog implements a basic leveled logging facility for the isolate
// library and its child processes. Output goes to stderr so that it survives
// the clone/exec boundary and interleaves usefully with child output.
package sylog

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// messageLevel describes the verbosity of emitted messages. Negative levels
// silence progressively more output, positive levels enable more.
type messageLevel int

const (
	fatal   messageLevel = iota - 4 // fatal    : -4
	errorl                          // error    : -3
	warn                            // warn     : -2
	logl                            // log      : -1
	_                               // unused   : 0
	info                            // info     : 1
	verbose                         // verbose  : 2
	debug                           // debug    : 3
)

func (l messageLevel) String() string {
	switch l {
	case fatal:
		return "FATAL"
	case errorl:
		return "ERROR"
	case warn:
		return "WARNING"
	case logl:
		return "LOG"
	case info:
		return "INFO"
	case verbose:
		return "VERBOSE"
	default:
		return "DEBUG"
	}
}

func (l messageLevel) logrusLevel() logrus.Level {
	switch l {
	case fatal:
		return logrus.FatalLevel
	case errorl:
		return logrus.ErrorLevel
	case warn:
		return logrus.WarnLevel
	case logl, info:
		return logrus.InfoLevel
	case verbose:
		return logrus.TraceLevel
	default:
		return logrus.DebugLevel
	}
}

var (
	mu       sync.Mutex
	curLevel = info
	logger   = newLogger()

	levelColor = map[messageLevel]*color.Color{
		fatal:  color.New(color.FgRed, color.Bold),
		errorl: color.New(color.FgRed),
		warn:   color.New(color.FgYellow),
		logl:   color.New(color.FgBlue),
	}
)

// prefixFormatter renders entries the way the CLI expects them:
// an upper-case, colored level tag followed by the message.
type prefixFormatter struct{}

func (prefixFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	lvl, _ := entry.Data["sylevel"].(messageLevel)

	prefix := fmt.Sprintf("%-8s ", lvl.String()+":")
	if c, ok := levelColor[lvl]; ok {
		prefix = c.Sprint(prefix)
	}

	return []byte(prefix + entry.Message + "\n"), nil
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.TraceLevel)
	l.SetFormatter(prefixFormatter{})
	// Exit status is owned by Fatalf, not by logrus.
	l.ExitFunc = func(int) {}
	return l
}

func init() {
	if s, ok := os.LookupEnv("ISOLATE_MESSAGELEVEL"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			curLevel = messageLevel(n)
		}
	}
}

// SetLevel explicitly sets the current message level.
func SetLevel(l int) {
	mu.Lock()
	defer mu.Unlock()
	curLevel = messageLevel(l)
}

// GetLevel returns the current message level.
func GetLevel() int {
	mu.Lock()
	defer mu.Unlock()
	return int(curLevel)
}

// DisableColor turns off the colored level prefixes.
func DisableColor() {
	color.NoColor = true
}

// SetWriter redirects all messages to w. Used by tests.
func SetWriter(w io.Writer) {
	logger.SetOutput(w)
}

func writef(level messageLevel, format string, a ...interface{}) {
	mu.Lock()
	cur := curLevel
	mu.Unlock()

	if cur < level {
		return
	}

	logger.WithField("sylevel", level).Logf(level.logrusLevel(), format, a...)
}

// Fatalf logs a message at the fatal level and exits with status 255.
func Fatalf(format string, a ...interface{}) {
	writef(fatal, format, a...)
	os.Exit(255)
}

// Errorf logs a message at the error level.
func Errorf(format string, a ...interface{}) {
	writef(errorl, format, a...)
}

// Warningf logs a message at the warning level.
func Warningf(format string, a ...interface{}) {
	writef(warn, format, a...)
}

// Infof logs a message at the info level.
func Infof(format string, a ...interface{}) {
	writef(info, format, a...)
}

// Verbosef logs a message at the verbose level.
func Verbosef(format string, a ...interface{}) {
	writef(verbose, format, a...)
}

// Debugf logs a message at the debug level.
func Debugf(format string, a ...interface{}) {
	writef(debug, format, a...)
}
