package corelog

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// ZerologLogger adapts a logiface.Logger, backed by github.com/rs/zerolog
// via github.com/joeycumines/izerolog, to the corelog.Logger interface.
// This is the backend the teacher's eventloop package pulls in directly --
// logiface is a non-indirect dependency of eventloop/go.mod -- so corelog
// talks to zerolog only through the logiface.Logger built around it, rather
// than wrapping zerolog directly.
type ZerologLogger struct {
	levelGate
	log *logiface.Logger[*izerolog.Event]
}

// NewZerologLogger builds a ZerologLogger writing to w at the given minimum
// level. A nil w defaults to os.Stderr.
func NewZerologLogger(w io.Writer, min Level) *ZerologLogger {
	if w == nil {
		w = os.Stderr
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	l := &ZerologLogger{
		log: logiface.New[*izerolog.Event](
			izerolog.WithZerolog(zl),
			logiface.WithLevel[*izerolog.Event](min.logifaceLevel()),
		),
	}
	l.setMin(min)
	return l
}

// Log implements Logger by opening a logiface.Builder at level, attaching
// fields, and emitting msg.
func (l *ZerologLogger) Log(level Level, msg string, fields ...Field) {
	if !l.Enabled(level) {
		return
	}
	b := l.log.Build(level.logifaceLevel())
	for _, f := range fields {
		b = b.Interface(f.Key, f.Value)
	}
	b.Log(msg)
}
