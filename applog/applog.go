package applog

import (
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"lobby-pilot/build"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

type Logger = zap.Logger

// LogEntry is one log record queued for an async or remote sink.
type LogEntry struct {
	Entry  *zapcore.Entry
	Fields []zap.Field
}

// RemoteLogSender ships batches of entries off the machine. It must log
// through NoRemote only.
type RemoteLogSender interface {
	WriteLogEntryToRemote(entries []*LogEntry) error
}

const (
	logsDirName                       = "logs"
	asyncSinkBufferSize               = 4096
	remoteSinkMaxLogEntriesBufferSize = 2048
	remoteSinkBatchSizeLimit          = 64 * 1024
	sinkShutdownTimeout               = 500 * time.Millisecond
)

var (
	globalLogger       = newFallbackLogger()
	noRemoteLogger     = globalLogger
	asyncSinks         []*asyncSink
	remoteSinkInstance *remoteSink
	acceptingLogs      int32 = 1
	logFile            *os.File
	lifecycleMu        sync.Mutex
)

func Info(msg string, fields ...zapcore.Field) {
	write(zapcore.InfoLevel, msg, fields)
}

func Warn(msg string, fields ...zapcore.Field) {
	write(zapcore.WarnLevel, msg, fields)
}

func Debug(msg string, fields ...zapcore.Field) {
	write(zapcore.DebugLevel, msg, fields)
}

func Error(msg string, fields ...zapcore.Field) {
	write(zapcore.ErrorLevel, msg, fields)
}

// Fatal logs, drains every sink and exits the process.
func Fatal(msg string, fields ...zapcore.Field) {
	logToRemoteSink(zapcore.FatalLevel, msg, fields)
	globalLogger.WithOptions(zap.AddCallerSkip(1), zap.WithFatalHook(shutdownThenExit{})).Fatal(msg, fields...)
}

func write(level zapcore.Level, msg string, fields []zapcore.Field) {
	if atomic.LoadInt32(&acceptingLogs) == 0 {
		return
	}
	if ce := globalLogger.WithOptions(zap.AddCallerSkip(2)).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
	logToRemoteSink(level, msg, fields)
}

func logToRemoteSink(level zapcore.Level, msg string, fields []zapcore.Field) {
	rs := remoteSinkInstance
	if rs == nil || atomic.LoadInt32(&acceptingLogs) == 0 {
		return
	}
	if !globalLogger.Core().Enabled(level) {
		return
	}

	entry := zapcore.Entry{
		Level:   level,
		Time:    time.Now(),
		Message: msg,
	}
	if err := rs.Write(&LogEntry{Entry: &entry, Fields: fields}); err != nil {
		NoRemote().Debug("Remote log entry dropped", zap.Error(err))
	}
}

type shutdownThenExit struct{}

func (shutdownThenExit) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {
	Shutdown()
	os.Exit(1)
}

// NoRemote returns a logger that never feeds the remote sink. Remote senders
// use it to report their own failures.
func NoRemote() *Logger {
	return noRemoteLogger
}

// LogStartupInfo records the build and the effective launch arguments.
func LogStartupInfo(launchArgs interface{}) {
	buildInfo := build.GetBuildInfo()
	buildCommit := "unknown"
	version := build.Version
	if buildInfo != nil {
		buildCommit = buildInfo.CommitHash
	}

	Info("Application started",
		zap.String("version", version),
		zap.String("buildCommit", buildCommit),
		zap.Any("launchArgs", launchArgs),
	)
}

// Initialize points the package logger at stdout and at
// <logPath>/pilot_<runID>.log, both written through async sinks. An empty
// logPath means ./logs.
func Initialize(runID string, rawLogLevel int, logPath string) error {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()

	dir := logPath
	if dir == "" {
		workdir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(workdir, logsDirName)
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilename := filepath.Join(dir, fmt.Sprintf("pilot_%s.log", runID))
	file, err := os.OpenFile(logFilename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file '%s': %w", logFilename, err)
	}
	logFile = file

	level := safeGetLogLevelOrDefault(rawLogLevel)
	encoderConfig := getEncoderConfig()

	stdoutSink := newAsyncSink(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(os.Stdout), level),
		asyncSinkBufferSize,
	)
	fileSink := newAsyncSink(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(logFile), level),
		asyncSinkBufferSize,
	)
	asyncSinks = []*asyncSink{stdoutSink, fileSink}

	l := zap.New(zapcore.NewTee(stdoutSink, fileSink), zap.AddCaller()).
		With(zap.String("runId", runID))
	noRemoteLogger = l
	setLogger(l)
	atomic.StoreInt32(&acceptingLogs, 1)
	return nil
}

// SetRemoteLogSender starts feeding log entries to sender, replacing any
// previous remote sink.
func SetRemoteLogSender(sender RemoteLogSender) {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()

	if remoteSinkInstance != nil {
		remoteSinkInstance.Shutdown(sinkShutdownTimeout)
	}
	remoteSinkInstance = newRemoteSink(sender, remoteSinkMaxLogEntriesBufferSize, getEncoderConfig())
}

// Shutdown stops accepting logs, drains the sinks and closes the log file.
func Shutdown() {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()

	atomic.StoreInt32(&acceptingLogs, 0)

	if remoteSinkInstance != nil {
		remoteSinkInstance.Shutdown(sinkShutdownTimeout)
		remoteSinkInstance = nil
	}
	for _, s := range asyncSinks {
		s.Shutdown(sinkShutdownTimeout)
	}
	asyncSinks = nil

	_ = globalLogger.Sync()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func safeGetLogLevelOrDefault(rawLogLevel int) zapcore.Level {
	if rawLogLevel < int(zapcore.DebugLevel) || rawLogLevel > int(zapcore.FatalLevel) {
		return zapcore.InfoLevel
	}
	return zapcore.Level(rawLogLevel)
}

func getEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339Nano))
	}
	return encoderConfig
}

// newFallbackLogger logs to stdout until Initialize runs.
func newFallbackLogger() *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(getEncoderConfig()),
		zapcore.Lock(os.Stdout),
		zapcore.InfoLevel,
	)
	return zap.New(core, zap.AddCaller())
}

func setLogger(l *Logger) {
	globalLogger = l
	zap.ReplaceGlobals(globalLogger)
}
