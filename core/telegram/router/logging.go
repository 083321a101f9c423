package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/schoolbot/core/logger"
	tghelpers "github.com/m3rciful/schoolbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// handleWithSummary runs fn as handlerName and logs one handler.handled line.
func handleWithSummary(c tele.Context, handlerName string, start time.Time, status, outcome string, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, handlerName)
	err := fn()
	logHandlerSummary(c, handlerName, start, status, outcome, err, extras...)
	return err
}

// logHandlerSummary logs the result of an update. Empty status and outcome
// are derived from err.
func logHandlerSummary(c tele.Context, handlerName string, start time.Time, status, outcome string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)
	derived := "ok"
	if err != nil {
		derived = "fail"
	}
	if status == "" {
		status = derived
	}
	if outcome == "" {
		outcome = derived
	}
	replies, keyboard := tghelpers.Replies(c)

	attrs := make([]slog.Attr, 0, 9+len(extras))
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.String("outcome", outcome),
		slog.Int("messages", replies),
		slog.Bool("kb", keyboard),
		slog.Duration("duration", time.Since(start)),
	)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
			slog.String("cause", handlerName),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", append(attrs, extras...)...)
}

// normalizeHandlerName turns a command or button label into a log-friendly
// name: "/Daily Report" becomes "daily_report".
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// deriveErrorCode prefers an error's own Code() and falls back to its type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return upperSnake(code)
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return upperSnake(t.Name())
}

func upperSnake(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", "_"))
}
