package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// log is the standard logrus logger so packages importing logrus directly share its settings.
var log = logrus.StandardLogger()

// InitializeLogger configures the global logger. format is "json" or "text".
func InitializeLogger(level, format string) error {
	return configure(os.Stdout, level, format)
}

func configure(out io.Writer, level, format string) error {
	if strings.EqualFold(format, "text") {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{}) // Use JSON format for structured logs
	}
	log.SetOutput(out)
	return SetLevel(level)
}

// SetLevel changes the log level; an empty level means info.
func SetLevel(level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	return nil
}

// Info logs informational messages.
func Info(message string, fields map[string]interface{}) {
	log.WithFields(fields).Info(message)
}

// Warn logs warning messages.
func Warn(message string, fields map[string]interface{}) {
	log.WithFields(fields).Warn(message)
}

// Error logs error messages.
func Error(message string, fields map[string]interface{}) {
	log.WithFields(fields).Error(message)
}

// Debug logs debug messages.
func Debug(message string, fields map[string]interface{}) {
	log.WithFields(fields).Debug(message)
}

// RequestLogger logs one line per handled request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if id, ok := c.Get("request_id"); ok {
			fields["request_id"] = id
		}
		Info("request handled", fields)
	}
}
