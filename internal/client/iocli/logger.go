package iocli

import (
	"io"
	"log/slog"

	"golang.org/x/term"
)

// IsTerminal сообщает, подключен ли w к терминалу
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewLogger создает slog.Logger: текстовый формат для терминала, JSON для pipe и файлов
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if IsTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
