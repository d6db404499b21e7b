package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLevel sets the minimum log level. Valid values are DEBUG, INFO,
// WARN and ERROR (case-insensitive). Unknown values are ignored.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		log.SetLevel(logrus.DebugLevel)
	case "INFO":
		log.SetLevel(logrus.InfoLevel)
	case "WARN":
		log.SetLevel(logrus.WarnLevel)
	case "ERROR":
		log.SetLevel(logrus.ErrorLevel)
	}
}

// SetFormat selects the output format: "text" or "json".
func SetFormat(format string) {
	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
}

// SetOutput selects where logs are written: "stdout", "stderr" or a file
// path. The file is opened in append mode; open failures fall back to
// stdout so startup never dies on a bad log path.
func SetOutput(output string) {
	switch output {
	case "", "stdout":
		log.SetOutput(os.Stdout)
	case "stderr":
		log.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.SetOutput(os.Stdout)
			log.Warnf("Failed to open log file %s: %v, falling back to stdout", output, err)
			return
		}
		log.SetOutput(file)
	}
}

func Debug(format string, v ...any) {
	log.Debugf(format, v...)
}

func Info(format string, v ...any) {
	log.Infof(format, v...)
}

func Warn(format string, v ...any) {
	log.Warnf(format, v...)
}

func Error(format string, v ...any) {
	log.Errorf(format, v...)
}
