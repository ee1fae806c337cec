package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	LOG_ENABLE                 = "SLURMCONF_LOGLEVEL"
	LOG_PATH                   = "SLURMCONF_LOGPATH"
	LOG_TIMEOUT                = "SLURMCONF_LOGTIMEOUT"
	LOG_DEFAULT_PATH           = "/tmp/"
	LOG_FILENAME               = "slurmconf.log"
	LOG_DEFAULT_TIMEOUT        = 24
	SLURMCONF_DEBUG_LOGGING    = 10
	SLURMCONF_INFO_LOGGING     = 20
	SLURMCONF_WARNING_LOGGING  = 30
	SLURMCONF_ERROR_LOGGING    = 40
	SLURMCONF_CRITICAL_LOGGING = 50
)

var (
	Log = newLogger(os.Stderr)
)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.Out = out
	l.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	}
	l.Level = logrusLevel(LogLevel())
	return l
}

// Init attaches the log file to Log. The first line of the file is the
// time it was created; files older than SLURMCONF_LOGTIMEOUT hours are
// started over.
func Init() error {
	logPath := LOG_DEFAULT_PATH
	if env := os.Getenv(LOG_PATH); len(env) > 0 {
		logPath = env
	}
	timeout := LOG_DEFAULT_TIMEOUT
	if env := os.Getenv(LOG_TIMEOUT); len(env) > 0 {
		if t, err := strconv.Atoi(env); err == nil {
			timeout = t
		}
	}
	logfile := filepath.Join(logPath, LOG_FILENAME)
	if expired(logfile, timeout) {
		os.Remove(logfile)
	}
	f, err := os.OpenFile(logfile,
		os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("logger: OpenFile: %w", err)
	}
	if stat, serr := f.Stat(); serr == nil && stat.Size() == 0 {
		f.WriteString(time.Now().Format(time.RFC3339) + "\n")
		f.Sync()
	}
	Log.Out = io.MultiWriter(os.Stderr, f)
	Log.Level = logrusLevel(LogLevel())
	return nil
}

func expired(logfile string, timeout int) bool {
	f, err := os.Open(logfile)
	if err != nil {
		return false
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Scan()
	tag, err := time.Parse(time.RFC3339, scanner.Text())
	if err != nil {
		return true
	}
	return int(time.Since(tag).Hours()) > timeout
}

// Logger returns Log for packages that take a logrus.FieldLogger.
func Logger() logrus.FieldLogger {
	return Log
}

func LogLevel() int {
	env := os.Getenv(LOG_ENABLE)
	if level, err := strconv.Atoi(env); err == nil {
		return level
	}
	switch env {
	case "debug", "DEBUG":
		return SLURMCONF_DEBUG_LOGGING
	case "info", "INFO":
		return SLURMCONF_INFO_LOGGING
	case "warning", "WARNING":
		return SLURMCONF_WARNING_LOGGING
	case "error", "ERROR":
		return SLURMCONF_ERROR_LOGGING
	}
	return SLURMCONF_WARNING_LOGGING
}

// SetLevel overrides the level read from the environment.
func SetLevel(level int) {
	Log.Level = logrusLevel(level)
}

func logrusLevel(level int) logrus.Level {
	switch {
	case level <= SLURMCONF_DEBUG_LOGGING:
		return logrus.DebugLevel
	case level <= SLURMCONF_INFO_LOGGING:
		return logrus.InfoLevel
	case level <= SLURMCONF_WARNING_LOGGING:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

func getLogLevel(level int) string {
	switch level := level; level {
	case SLURMCONF_DEBUG_LOGGING:
		return "DEBUG"
	case SLURMCONF_INFO_LOGGING:
		return "INFO"
	case SLURMCONF_WARNING_LOGGING:
		return "WARNING"
	case SLURMCONF_ERROR_LOGGING:
		return "ERROR"
	default:
		return "CRITICAL"
	}
}

func logObj(level int, name string, v interface{}) {
	lvl := logrusLevel(level)
	if !Log.IsLevelEnabled(lvl) {
		return
	}
	data, _ := json.MarshalIndent(v, "", " ")
	Log.Logf(lvl, "%s %s:\n%s", getLogLevel(level), name, data)
}

func DebugObj(name string, v interface{}) {
	logObj(SLURMCONF_DEBUG_LOGGING, name, v)
}

func DebugPrintf(format string, a ...interface{}) {
	Log.Debugf(format, a...)
}

func InfoObj(name string, v interface{}) {
	logObj(SLURMCONF_INFO_LOGGING, name, v)
}

func InfoPrintf(format string, a ...interface{}) {
	Log.Infof(format, a...)
}

func WarningObj(name string, v interface{}) {
	logObj(SLURMCONF_WARNING_LOGGING, name, v)
}

func WarningPrintf(format string, a ...interface{}) {
	Log.Warnf(format, a...)
}

func ErrorObj(name string, v interface{}) {
	logObj(SLURMCONF_ERROR_LOGGING, name, v)
}

func ErrorPrintf(format string, a ...interface{}) {
	Log.Errorf(format, a...)
}

// Critical messages are logged at error severity; logrus' fatal level
// would exit the process.
func CriticalObj(name string, v interface{}) {
	data, _ := json.MarshalIndent(v, "", " ")
	Log.Errorf("%s %s:\n%s", getLogLevel(SLURMCONF_CRITICAL_LOGGING), name, data)
}

func CriticalPrintf(format string, a ...interface{}) {
	Log.Errorf(getLogLevel(SLURMCONF_CRITICAL_LOGGING)+" "+format, a...)
}
