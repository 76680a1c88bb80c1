package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/medrec-labs/profilecache"
)

type LogrusLogger struct{ E *logrus.Entry }

var _ profilecache.Logger = LogrusLogger{}

func (l LogrusLogger) Debug(msg string, f profilecache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f profilecache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Info(msg)
}
func (l LogrusLogger) Warn(msg string, f profilecache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Warn(msg)
}
func (l LogrusLogger) Error(msg string, f profilecache.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
