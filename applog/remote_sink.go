package applog

import (
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sync"
	"time"
)

// remoteSink batches entries up to remoteSinkBatchSizeLimit encoded bytes and
// hands each batch to a RemoteLogSender from its own goroutine.
type remoteSink struct {
	sender    RemoteLogSender
	entryChan chan *LogEntry
	quit      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	batch     []*LogEntry
	batchSize int
	encoder   zapcore.Encoder
}

func newRemoteSink(sink RemoteLogSender, bufferSize int, encoderConfig zapcore.EncoderConfig) *remoteSink {
	s := &remoteSink{
		sender:    sink,
		entryChan: make(chan *LogEntry, bufferSize),
		quit:      make(chan struct{}),
		encoder:   zapcore.NewJSONEncoder(encoderConfig),
	}

	s.wg.Add(1)
	go s.process()
	return s
}

func (rs *remoteSink) Write(entry *LogEntry) error {
	select {
	case rs.entryChan <- entry:
		return nil
	default:
		return fmt.Errorf("remote log buffer overflow (capacity: %d)", cap(rs.entryChan))
	}
}

func (rs *remoteSink) process() {
	defer rs.wg.Done()
	for {
		select {
		case entry := <-rs.entryChan:
			rs.add(entry)
		case <-rs.quit:
			for {
				select {
				case entry := <-rs.entryChan:
					rs.add(entry)
				default:
					rs.flush()
					return
				}
			}
		}
	}
}

func (rs *remoteSink) add(entry *LogEntry) {
	entrySize := rs.getEntrySize(entry)
	if entrySize <= 0 {
		NoRemote().Error("Unserializable log entry for remote sink, dropping", zap.Any("entry", entry))
		return
	}

	// Send what is buffered first when the new entry would overflow the batch.
	if rs.batchSize+entrySize > remoteSinkBatchSizeLimit && len(rs.batch) > 0 {
		rs.flush()
	}
	rs.batch = append(rs.batch, entry)
	rs.batchSize += entrySize

	if rs.batchSize >= remoteSinkBatchSizeLimit {
		rs.flush()
	}
}

func (rs *remoteSink) getEntrySize(e *LogEntry) int {
	if e == nil || e.Entry == nil {
		return 0
	}
	buf, err := rs.encoder.EncodeEntry(*e.Entry, e.Fields)
	if err != nil {
		return 0
	}
	defer buf.Free()
	return buf.Len()
}

// flush sends the current batch. A failed batch is dropped rather than
// retried so a dead endpoint cannot grow the batch without bound.
func (rs *remoteSink) flush() {
	if len(rs.batch) == 0 {
		return
	}

	if err := rs.sender.WriteLogEntryToRemote(rs.batch); err != nil {
		NoRemote().Warn("Failed to ship log batch, dropping",
			zap.Int("entries", len(rs.batch)),
			zap.Error(err),
		)
	}

	rs.batch = nil
	rs.batchSize = 0
}

// Shutdown flushes what is queued, waiting at most timeout. Safe to call twice.
func (rs *remoteSink) Shutdown(timeout time.Duration) {
	rs.stopOnce.Do(func() { close(rs.quit) })
	waitGroupWithTimeout(&rs.wg, timeout)
}
