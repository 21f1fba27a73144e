// Package logger configures log/slog for voucherwatch from LoggingConfig.
// Every handler it builds rewrites voucher URLs to a placeholder so voucher
// IDs never reach log output.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"voucherwatch/internal/models"
	"voucherwatch/internal/version"
)

// Setup creates a structured logger with global version fields. The returned
// io.Closer is non-nil only for file output and must be closed by the caller.
func Setup(cfg models.LoggingConfig, ver version.Info) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	writer, closer, err := openWriter(cfg.Output, cfg.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}

	logger := slog.New(newHandler(writer, cfg.Format, level)).With(
		slog.String("version", ver.Version),
		slog.String("git_commit", ver.GitCommit),
		slog.String("instance_id", ver.InstanceID),
	)

	return logger, closer, nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactVoucherURLs,
	}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var (
	embeddedVoucherURL = regexp.MustCompile(`https://voucher\.redeem\.gov\.sg/[A-Za-z0-9_-]+(\?[^\s"]*)?`)
	upstreamGroupPath  = regexp.MustCompile(`/v1/public/vouchers/groups/[A-Za-z0-9_-]+`)
)

// redactVoucherURLs hides voucher IDs in string and error values, including
// the message. Voucher links become the sanitized placeholder and upstream
// request paths lose their ID segment.
func redactVoucherURLs(_ []string, a slog.Attr) slog.Attr {
	var s string
	switch a.Value.Kind() {
	case slog.KindString:
		s = a.Value.String()
	case slog.KindAny:
		err, ok := a.Value.Any().(error)
		if !ok || err == nil {
			return a
		}
		s = err.Error()
	default:
		return a
	}

	redacted := redact(s)
	if redacted == s && a.Value.Kind() == slog.KindString {
		return a
	}
	return slog.String(a.Key, redacted)
}

func redact(s string) string {
	if strings.Contains(s, models.VoucherHost) {
		s = embeddedVoucherURL.ReplaceAllString(s, models.SanitizedVoucherURL)
	}
	if strings.Contains(s, "/vouchers/groups/") {
		s = upstreamGroupPath.ReplaceAllString(s, "/v1/public/vouchers/groups/:id")
	}
	return s
}

// parseLevel converts a level string to an slog.Level, case-insensitively.
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %s", level)
	}
}

// openWriter returns the output writer. Only file output has a closer.
func openWriter(output, filePath string) (io.Writer, io.Closer, error) {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if filePath == "" {
			return nil, nil, fmt.Errorf("file path is required when output is file")
		}
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", filePath, err)
		}
		return f, f, nil
	default:
		return os.Stdout, nil, nil
	}
}
