package applog

import (
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sync"
	"time"
)

// asyncSink is a zapcore.Core that hands entries to a goroutine, so a stalled
// writer (a blocked stdout pipe) never blocks the caller. Entries that do not
// fit the buffer are dropped.
type asyncSink struct {
	core        zapcore.Core
	extraFields []zap.Field
	entryChan   chan *LogEntry
	quit        chan struct{}
	stopOnce    *sync.Once
	wg          *sync.WaitGroup
}

func newAsyncSink(core zapcore.Core, bufferSize int) *asyncSink {
	s := &asyncSink{
		core:      core,
		entryChan: make(chan *LogEntry, bufferSize),
		quit:      make(chan struct{}),
		stopOnce:  &sync.Once{},
		wg:        &sync.WaitGroup{},
	}

	s.wg.Add(1)
	go s.process()
	return s
}

func (s *asyncSink) process() {
	defer s.wg.Done()
	for {
		select {
		case entry := <-s.entryChan:
			s.writeEntry(entry)
		case <-s.quit:
			for {
				select {
				case entry := <-s.entryChan:
					s.writeEntry(entry)
				default:
					_ = s.core.Sync()
					return
				}
			}
		}
	}
}

func (s *asyncSink) writeEntry(entry *LogEntry) {
	if entry == nil || entry.Entry == nil {
		return
	}
	_ = s.core.Write(*entry.Entry, entry.Fields)
}

func (s *asyncSink) Sync() error {
	return s.core.Sync()
}

func (s *asyncSink) Write(entry zapcore.Entry, fields []zap.Field) error {
	all := fields
	if len(s.extraFields) > 0 {
		all = make([]zap.Field, 0, len(s.extraFields)+len(fields))
		all = append(all, s.extraFields...)
		all = append(all, fields...)
	}

	select {
	case s.entryChan <- &LogEntry{Entry: &entry, Fields: all}:
		return nil
	default:
		return fmt.Errorf("channel log buffer overflow (capacity: %d)", cap(s.entryChan))
	}
}

func (s *asyncSink) Enabled(lvl zapcore.Level) bool {
	return s.core.Enabled(lvl)
}

// With shares the queue and writer goroutine; the fields travel with each entry.
func (s *asyncSink) With(fields []zap.Field) zapcore.Core {
	extra := make([]zap.Field, 0, len(s.extraFields)+len(fields))
	extra = append(extra, s.extraFields...)
	extra = append(extra, fields...)

	return &asyncSink{
		core:        s.core,
		extraFields: extra,
		entryChan:   s.entryChan,
		quit:        s.quit,
		stopOnce:    s.stopOnce,
		wg:          s.wg,
	}
}

func (s *asyncSink) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if s.Enabled(entry.Level) {
		return ce.AddCore(entry, s)
	}
	return ce
}

// Shutdown drains the queue, waiting at most timeout. Safe to call twice.
func (s *asyncSink) Shutdown(timeout time.Duration) {
	s.stopOnce.Do(func() { close(s.quit) })
	waitGroupWithTimeout(s.wg, timeout)
}

func waitGroupWithTimeout(wg *sync.WaitGroup, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}
