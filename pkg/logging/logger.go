// Package logging provides the structured event sink shared by the mint components
// and the colored console formatter used by the minter CLI.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields are structured key/value pairs attached to a log event.
type Fields = logrus.Fields

// OutcomeField marks events emitted through Success so formatters can highlight them.
const OutcomeField = "outcome"

const outcomeSuccess = "success"

// Logger is the logging capability handed to each component. It carries the four
// event kinds the minter reports plus Debug for plumbing detail.
type Logger interface {
	Debug(msg string, fields Fields)
	Info(msg string, fields Fields)
	Warn(msg string, fields Fields)
	Error(msg string, err error, fields Fields)
	Success(msg string, fields Fields)
}

type logrusLogger struct {
	entry *logrus.Entry
}

// New wraps a logrus logger.
func New(base *logrus.Logger) Logger {
	return &logrusLogger{entry: logrus.NewEntry(base)}
}

// NewConsole builds the logger used by the CLI: colored output on stdout with the
// level parsed from levelName, defaulting to info.
func NewConsole(levelName string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(NewColoredJSONFormatter())

	if levelName == "" {
		log.SetLevel(logrus.InfoLevel)
		return log, nil
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		return log, err
	}
	log.SetLevel(level)
	return log, nil
}

// Discard returns a Logger that drops every event.
func Discard() Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(log)
}

func (l *logrusLogger) Debug(msg string, fields Fields) {
	l.entry.WithFields(fields).Debug(msg)
}

func (l *logrusLogger) Info(msg string, fields Fields) {
	l.entry.WithFields(fields).Info(msg)
}

func (l *logrusLogger) Warn(msg string, fields Fields) {
	l.entry.WithFields(fields).Warn(msg)
}

func (l *logrusLogger) Error(msg string, err error, fields Fields) {
	e := l.entry.WithFields(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

func (l *logrusLogger) Success(msg string, fields Fields) {
	l.entry.WithFields(fields).WithField(OutcomeField, outcomeSuccess).Info(msg)
}
