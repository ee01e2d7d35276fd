// Package klog provides the vm core's structured diagnostics: a single
// package-level logger, configured once at boot, that fault/fork/teardown
// paths log through. Mirrors the LucasIBorrat-GoSO InicializarLogger/
// InfoLog pattern of a globally configured *slog.Logger.
package klog

import (
	"log/slog"
	"os"
)

var log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
	Level: slog.LevelInfo,
})).With("component", "vm")

// Configure replaces the package logger, e.g. to raise verbosity or to
// redirect output during tests.
func Configure(level slog.Level, w *os.File) {
	if w == nil {
		w = os.Stdout
	}
	log = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})).With("component", "vm")
}

func Debug(msg string, args ...any) { log.Debug(msg, args...) }
func Info(msg string, args ...any)  { log.Info(msg, args...) }
func Warn(msg string, args ...any)  { log.Warn(msg, args...) }
func Error(msg string, args ...any) { log.Error(msg, args...) }
