package applog

import (
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"sync"
	"testing"
	"time"
)

// recordingCore keeps every written message and its fields.
type recordingCore struct {
	mu       sync.Mutex
	minLevel zapcore.Level
	delay    time.Duration
	messages []string
	fields   [][]zap.Field
	syncs    int
}

func (c *recordingCore) Enabled(lvl zapcore.Level) bool  { return lvl >= c.minLevel }
func (c *recordingCore) With(_ []zap.Field) zapcore.Core { return c }

func (c *recordingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *recordingCore) Write(ent zapcore.Entry, fields []zap.Field) error {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, ent.Message)
	c.fields = append(c.fields, fields)
	return nil
}

func (c *recordingCore) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncs++
	return nil
}

func (c *recordingCore) snapshot() ([]string, [][]zap.Field) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...), append([][]zap.Field(nil), c.fields...)
}

func infoEntry(msg string) zapcore.Entry {
	return zapcore.Entry{Level: zapcore.InfoLevel, Message: msg, Time: time.Now()}
}

func TestAsyncSinkWritesInOrder(t *testing.T) {
	core := &recordingCore{minLevel: zapcore.DebugLevel}
	sink := newAsyncSink(core, 16)

	for i := range 5 {
		require.NoError(t, sink.Write(infoEntry(fmt.Sprintf("cycle %d", i)), []zap.Field{zap.Int("cycle", i)}))
	}
	sink.Shutdown(time.Second)

	messages, fields := core.snapshot()
	assert.Equal(t, []string{"cycle 0", "cycle 1", "cycle 2", "cycle 3", "cycle 4"}, messages)
	require.Len(t, fields, 5)
	assert.Equal(t, int64(4), fields[4][0].Integer)
	assert.Equal(t, 1, core.syncs, "shutdown syncs the wrapped core once")
}

func TestAsyncSinkDropsOnFullBuffer(t *testing.T) {
	core := &recordingCore{delay: 100 * time.Millisecond}
	sink := newAsyncSink(core, 1)
	defer sink.Shutdown(time.Second)

	require.NoError(t, sink.Write(infoEntry("first"), nil))
	// The writer goroutine may already hold "first"; fill until the buffer refuses.
	var err error
	for range 3 {
		if err = sink.Write(infoEntry("more"), nil); err != nil {
			break
		}
	}
	assert.EqualError(t, err, "channel log buffer overflow (capacity: 1)")
}

func TestAsyncSinkWithCarriesFields(t *testing.T) {
	core := &recordingCore{}
	sink := newAsyncSink(core, 8)

	child := sink.With([]zap.Field{zap.String("runId", "run-1")})
	typed, ok := child.(*asyncSink)
	require.True(t, ok)
	assert.Empty(t, sink.extraFields, "With does not modify the parent")

	require.NoError(t, typed.Write(infoEntry("Lobbies assembled"), []zap.Field{zap.String("teamA", "a, b")}))
	sink.Shutdown(time.Second)

	_, fields := core.snapshot()
	require.Len(t, fields, 1)
	require.Len(t, fields[0], 2)
	assert.Equal(t, "runId", fields[0][0].Key)
	assert.Equal(t, "teamA", fields[0][1].Key)
}

func TestAsyncSinkCheckHonorsLevel(t *testing.T) {
	core := &recordingCore{minLevel: zapcore.InfoLevel}
	sink := newAsyncSink(core, 8)
	defer sink.Shutdown(time.Second)

	assert.True(t, sink.Enabled(zapcore.WarnLevel))
	assert.False(t, sink.Enabled(zapcore.DebugLevel))

	ce := new(zapcore.CheckedEntry)
	assert.Equal(t, ce, sink.Check(zapcore.Entry{Level: zapcore.DebugLevel}, ce))
	assert.NotNil(t, sink.Check(zapcore.Entry{Level: zapcore.InfoLevel}, nil))
}

func TestAsyncSinkShutdownDrainsAndIsIdempotent(t *testing.T) {
	core := &recordingCore{delay: 5 * time.Millisecond}
	sink := newAsyncSink(core, 32)

	for i := range 10 {
		require.NoError(t, sink.Write(infoEntry(fmt.Sprintf("tick %d", i)), nil))
	}

	sink.Shutdown(time.Second)
	sink.Shutdown(10 * time.Millisecond)

	messages, _ := core.snapshot()
	assert.Len(t, messages, 10)
}

// stalledWriter never returns, like a stdout pipe nobody reads.
type stalledWriter struct{}

func (stalledWriter) Write(_ []byte) (int, error) { select {} }
func (stalledWriter) Sync() error                 { return nil }

func TestAsyncSinkDoesNotBlockOnStalledWriter(t *testing.T) {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(getEncoderConfig()), zapcore.AddSync(stalledWriter{}), zap.DebugLevel)
	sink := newAsyncSink(core, 1)

	done := make(chan struct{})
	go func() {
		for range 5 {
			_ = sink.Write(infoEntry("Search started"), nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Write blocked on a stalled writer")
	}
	sink.Shutdown(10 * time.Millisecond)
}
