package logging

import (
	"log/slog"
	"time"
)

// Standardized structured logging keys shared across components.
const (
	// FieldComponent identifies the subsystem emitting the log line.
	FieldComponent = "component"
	// FieldItemID is the queue item identifier.
	FieldItemID = "item_id"
	// FieldASIN is the source product identifier of a queue item.
	FieldASIN = "asin"
	// FieldPlatform is the target marketplace name.
	FieldPlatform = "platform"
	// FieldAccountID is the seller account identifier.
	FieldAccountID = "account_id"
	// FieldBatchID correlates items enqueued by one batch request.
	FieldBatchID = "batch_id"
	// FieldPID is an operating system process identifier.
	FieldPID = "pid"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func Int64(key string, value int64) Attr { return slog.Int64(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Time(key string, value time.Time) Attr { return slog.Time(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args converts attrs into the variadic any form slog methods accept.
func Args(attrs ...Attr) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}
