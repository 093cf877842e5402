// Package logger provides the leveled loggers used outside the HTTP request
// path (services, sweeper, queue, commands).  Request logs come from echo.
package logger

import (
	"io"
	"log"
	"os"
	"sync"
)

var (
	InfoLogger  *log.Logger
	ErrorLogger *log.Logger
	DebugLogger *log.Logger

	debugEnabled bool
	initOnce     sync.Once
)

// Init sets up the loggers writing to stdout/stderr.  Debug output is
// discarded unless debug is true.
func Init(debug bool) {
	initOnce.Do(func() {})
	setup(os.Stdout, os.Stderr, debug)
}

// SetOutput redirects every level to w.  Used by tests and by commands whose
// stdout carries data.
func SetOutput(w io.Writer, debug bool) {
	initOnce.Do(func() {})
	setup(w, w, debug)
}

func setup(out, errOut io.Writer, debug bool) {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds | log.LUTC
	InfoLogger = log.New(out, "INFO: ", flags)
	ErrorLogger = log.New(errOut, "ERROR: ", flags)
	debugOut := io.Discard
	if debug {
		debugOut = out
	}
	DebugLogger = log.New(debugOut, "DEBUG: ", flags)
	debugEnabled = debug
}

func ensure() {
	initOnce.Do(func() { setup(os.Stdout, os.Stderr, false) })
}

// DebugEnabled reports whether Debug output is written anywhere.
func DebugEnabled() bool { ensure(); return debugEnabled }

func Info(msg string) {
	ensure()
	InfoLogger.Println(msg)
}

func Infof(format string, v ...interface{}) {
	ensure()
	InfoLogger.Printf(format, v...)
}

func Error(msg string) {
	ensure()
	ErrorLogger.Println(msg)
}

func Errorf(format string, v ...interface{}) {
	ensure()
	ErrorLogger.Printf(format, v...)
}

func Debug(msg string) {
	ensure()
	DebugLogger.Println(msg)
}

func Debugf(format string, v ...interface{}) {
	ensure()
	DebugLogger.Printf(format, v...)
}

func Fatal(msg string) {
	ensure()
	ErrorLogger.Fatal(msg)
}

func Fatalf(format string, v ...interface{}) {
	ensure()
	ErrorLogger.Fatalf(format, v...)
}
