package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// ETLLogger is the pipeline logger. It writes to a dated log file and
// mirrors everything to stdout; Debug output only appears when the
// verbose switch is on.
type ETLLogger struct {
	infoLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
	isVerbose   bool
}

// NewETLLogger opens (or creates) today's log file and builds the logger.
// If the file cannot be opened the logger falls back to stdout only.
func NewETLLogger(verbose bool) *ETLLogger {
	logFileName := fmt.Sprintf("etl_log_%s.log", time.Now().Format("2006-01-02"))

	var out io.Writer = os.Stdout
	file, err := os.OpenFile(logFileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Printf("WARN: could not open log file %s: %v (logging to stdout only)", logFileName, err)
	} else {
		out = io.MultiWriter(file, os.Stdout)
	}

	return &ETLLogger{
		infoLogger:  log.New(out, "INFO: ", log.Ldate|log.Ltime),
		errorLogger: log.New(out, "ERROR: ", log.Ldate|log.Ltime),
		debugLogger: log.New(out, "DEBUG: ", log.Ldate|log.Ltime),
		isVerbose:   verbose,
	}
}

// Info logs an informational message.
func (l *ETLLogger) Info(format string, v ...interface{}) {
	l.infoLogger.Println(fmt.Sprintf(format, v...))
}

// Error logs an error message.
func (l *ETLLogger) Error(format string, v ...interface{}) {
	l.errorLogger.Println(fmt.Sprintf(format, v...))
}

// Debug logs a message only in verbose mode.
func (l *ETLLogger) Debug(format string, v ...interface{}) {
	if !l.isVerbose {
		return
	}
	l.debugLogger.Println(fmt.Sprintf(format, v...))
}

// LogStageStart marks the beginning of a pipeline stage.
func (l *ETLLogger) LogStageStart(stage string) {
	l.Info("Starting stage: %s", stage)
}

// LogStageComplete marks the end of a pipeline stage.
func (l *ETLLogger) LogStageComplete(stage string, duration time.Duration) {
	l.Info("Stage %s finished in %v", stage, duration)
}
