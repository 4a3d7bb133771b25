package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

var (
	AppLogger    *log.Logger
	AccessLogger *log.Logger
	ErrorLogger  *log.Logger

	logLevel      string
	appLogFile    *os.File
	accessLogFile *os.File
	initialized   bool
)

// InitGlobalLoggers opens (or re-opens) the app and access log files.
// Errors always go to stderr as well; Info/Debug only go to the app log.
func InitGlobalLoggers(appLogPath, accessLogPath, level string) error {
	if initialized && appLogFile != nil && accessLogFile != nil && strings.ToUpper(level) == logLevel {
		return nil
	}
	if appLogFile != nil {
		appLogFile.Close()
		appLogFile = nil
	}
	if accessLogFile != nil {
		accessLogFile.Close()
		accessLogFile = nil
	}

	logLevel = strings.ToUpper(level)
	if logLevel == "" {
		logLevel = "INFO"
	}

	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)

	var actualAppLogPath string
	var appWriter io.Writer
	appLogFile, appWriter, actualAppLogPath = openLogFile(appLogPath, "App")
	AppLogger = log.New(appWriter, "APP: ", log.Ldate|log.Ltime|log.Lshortfile)

	var actualAccessLogPath string
	var accessWriter io.Writer
	accessLogFile, accessWriter, actualAccessLogPath = openLogFile(accessLogPath, "Access")
	AccessLogger = log.New(accessWriter, "ACCESS: ", log.Ldate|log.Ltime)

	if !initialized {
		AppLogger.Printf("App logger initialized. Log level: %s. Output file: %s", logLevel, actualAppLogPath)
		AccessLogger.Printf("Access logger initialized. Output file: %s", actualAccessLogPath)
	}
	initialized = true
	return nil
}

// openLogFile falls back to io.Discard when the file cannot be created.
func openLogFile(path, kind string) (*os.File, io.Writer, string) {
	if path == "" {
		return nil, io.Discard, "(discarded)"
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		ErrorLogger.Printf("Failed to create %s log directory %s: %v. Logs will be discarded.", strings.ToLower(kind), dir, err)
		return nil, io.Discard, "(discarded)"
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		ErrorLogger.Printf("Failed to open %s log file %s: %v. Logs will be discarded.", strings.ToLower(kind), path, err)
		return nil, io.Discard, "(discarded)"
	}
	return f, f, path
}

// Level returns the active log level.
func Level() string {
	return logLevel
}

func Info(format string, v ...interface{}) {
	if AppLogger != nil && (logLevel == "INFO" || logLevel == "DEBUG") {
		AppLogger.Printf(format, v...)
	}
}

func Debug(format string, v ...interface{}) {
	if AppLogger != nil && logLevel == "DEBUG" {
		AppLogger.Printf(format, v...)
	}
}

func Warn(format string, v ...interface{}) {
	if AppLogger != nil && (logLevel == "WARN" || logLevel == "INFO" || logLevel == "DEBUG") {
		AppLogger.Printf("WARN: "+format, v...)
	}
}

func Error(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	if ErrorLogger != nil {
		ErrorLogger.Print(message)
	}
	if AppLogger != nil && appLogFile != nil {
		AppLogger.Print(message)
	}
}

func Fatal(format string, v ...interface{}) {
	message := fmt.Sprintf(format, v...)
	if ErrorLogger != nil {
		ErrorLogger.Fatal(message)
	} else {
		log.Fatal(message)
	}
}

// AccessInfo writes one line to the access log regardless of level.
func AccessInfo(format string, v ...interface{}) {
	if AccessLogger != nil {
		AccessLogger.Printf(format, v...)
	}
}

func CloseLogFiles() {
	if appLogFile != nil {
		AppLogger.Println("Closing app log file.")
		appLogFile.Close()
		appLogFile = nil
	}
	if accessLogFile != nil {
		AccessLogger.Println("Closing access log file.")
		accessLogFile.Close()
		accessLogFile = nil
	}
	initialized = false // allow re-initialization (tests)
}
