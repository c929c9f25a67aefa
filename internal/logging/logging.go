// Package logging настраивает logrus для сервиса
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New создаёт логгер с заданным уровнем и форматом (json или text)
func New(level, format string) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, format)
}

// NewWithOutput - как New, но пишет в out
func NewWithOutput(out io.Writer, level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	if err != nil && level != "" {
		log.WithField("level", level).Warn("Неизвестный уровень логирования, используем info")
	}
	return log
}

// Component возвращает запись логгера с полем component
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}

// Discard - логгер, который ничего не пишет
func Discard() *logrus.Logger {
	return NewWithOutput(io.Discard, "panic", "text")
}
