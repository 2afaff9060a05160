package main

import (
	"context"
	"log/slog"

	"github.com/hashicorp/go-multierror"
)

// multiHandler fans log records out to several handlers.
type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs error

	for _, h := range m {
		if !h.Enabled(ctx, r.Level) {
			continue
		}

		err := h.Handle(ctx, r.Clone())
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	ret := make(multiHandler, 0, len(m))
	for _, h := range m {
		ret = append(ret, h.WithAttrs(attrs))
	}

	return ret
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	ret := make(multiHandler, 0, len(m))
	for _, h := range m {
		ret = append(ret, h.WithGroup(name))
	}

	return ret
}
