package tui

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// CustomTextHandler is a compact slog.Handler writing tview color tagged lines.
type CustomTextHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewCustomTextHandler returns an instance of the CustomTextHandler ready for use.
// Records below level are dropped; a nil level hides debug messages.
func NewCustomTextHandler(out io.Writer, level slog.Leveler) *CustomTextHandler {
	if level == nil {
		level = slog.LevelInfo
	}

	return &CustomTextHandler{
		mu:    &sync.Mutex{},
		w:     out,
		level: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (cth *CustomTextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= cth.level.Level()
}

// WithAttrs returns a handler adding attrs to every record.
func (cth *CustomTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	ret := *cth
	ret.attrs = slices.Concat(cth.attrs, cth.qualify(attrs))

	return &ret
}

// WithGroup returns a handler prefixing the keys of following attributes with name.
func (cth *CustomTextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return cth
	}

	ret := *cth
	ret.group = cth.group + name + "."

	return &ret
}

func (cth *CustomTextHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if cth.group == "" {
		return attrs
	}

	ret := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		ret = append(ret, slog.Attr{Key: cth.group + a.Key, Value: a.Value})
	}

	return ret
}

// Handle handles the Record.
func (cth *CustomTextHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	// Build up the base line with timestamp, log level, and message.
	buf.WriteString(r.Time.Format(time.DateTime) + " ")

	var levelColor string

	switch {
	case r.Level >= slog.LevelError:
		levelColor = "[red]"
	case r.Level >= slog.LevelWarn:
		levelColor = "[yellow]"
	case r.Level >= slog.LevelInfo:
		levelColor = "[green]"
	default:
		levelColor = "[blue]"
	}

	buf.WriteString(levelColor + r.Level.String() + "[white] ")
	buf.WriteString(r.Message)

	// Collect the handler and record attributes.
	attrs := slices.Clone(cth.attrs)

	var recordAttrs []slog.Attr

	r.Attrs(func(a slog.Attr) bool {
		recordAttrs = append(recordAttrs, a)

		return true
	})

	attrs = append(attrs, cth.qualify(recordAttrs)...)

	if len(attrs) > 0 {
		// Sort the keys so we have a consistent output.
		slices.SortStableFunc(attrs, func(a slog.Attr, b slog.Attr) int {
			return strings.Compare(a.Key, b.Key)
		})

		buf.WriteString("[purple]")

		for _, a := range attrs {
			// Stack traces don't fit on a console line.
			if a.Key == "stack" {
				continue
			}

			buf.WriteString(" " + a.Key + "=" + a.Value.String())
		}

		buf.WriteString("[white]")
	}

	buf.WriteString("\n")

	cth.mu.Lock()
	defer cth.mu.Unlock()

	_, err := io.WriteString(cth.w, buf.String())

	return err
}
