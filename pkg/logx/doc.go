// Package logx wraps zerolog with the sinks ghwatch needs: a short console
// format, JSON to a file, and optional mirrors to Telegram and Sentry with
// their own minimum levels.
package logx
