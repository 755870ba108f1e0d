package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New настраивает корневой логгер: уровень из LOG_LEVEL, в development —
// консольный вывод для чтения глазами.
func New(level, appEnv string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if appEnv == "development" {
		w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
		return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
