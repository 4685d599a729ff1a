package logger

import (
	"os"

	"github.com/op/go-logging"
)

// InitLogger returns a leveled logger writing to stderr. Every service
// gets this one injected; nothing logs through the stdlib directly.
func InitLogger(name string, level logging.Level) *logging.Logger {
	log := logging.MustGetLogger(name)
	format := logging.MustStringFormatter("%{time:2006-01-02 15:04:05} [%{level}] %{message}")
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, format)
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(level, name)
	logging.SetBackend(leveled)
	return log
}
