package log

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
)

// Entry is one record captured by TestLogger.
type Entry struct {
	Level   Level
	Message string
	Fields  map[string]interface{}
}

// Field returns the value of key rendered with fmt, or "" when absent.
func (e Entry) Field(key string) string {
	v, ok := e.Fields[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

type recording struct {
	mu      sync.Mutex
	entries []Entry
	buf     *bytes.Buffer
}

// TestLogger records entries in memory. Loggers derived through With share
// the recording, so a test can install one with SetLogger and inspect what
// the stages below it logged. Safe for concurrent use by trial workers.
type TestLogger struct {
	rec    *recording
	level  Level
	fields []any
}

// NewTestLogger returns a recorder and a buffer holding a plain text line per
// entry, which is convenient in failure messages.
//
//	logger, buf := log.NewTestLogger(log.LevelDebug)
//	prev := log.SetLogger(logger)
//	defer log.SetLogger(prev)
//	...
//	if got := logger.Operations(); ... {
//	    t.Errorf("operations = %v\n%s", got, buf)
//	}
func NewTestLogger(level Level) (*TestLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &TestLogger{rec: &recording{buf: buf}, level: level}, buf
}

// Debug implements Logger.Debug.
func (t *TestLogger) Debug(msg string, fields ...any) { t.record(LevelDebug, msg, fields) }

// Info implements Logger.Info.
func (t *TestLogger) Info(msg string, fields ...any) { t.record(LevelInfo, msg, fields) }

// Warn implements Logger.Warn.
func (t *TestLogger) Warn(msg string, fields ...any) { t.record(LevelWarn, msg, fields) }

// Error implements Logger.Error.
func (t *TestLogger) Error(msg string, fields ...any) { t.record(LevelError, msg, fields) }

// With implements Logger.With.
func (t *TestLogger) With(fields ...any) Logger {
	merged := append(append([]any(nil), t.fields...), fields...)
	return &TestLogger{rec: t.rec, level: t.level, fields: merged}
}

// Enabled implements Logger.Enabled.
func (t *TestLogger) Enabled(_ context.Context, level Level) bool {
	return level >= t.level
}

func (t *TestLogger) record(level Level, msg string, fields []any) {
	if level < t.level {
		return
	}
	// Error で先頭が error 値の場合は zerolog 実装と同じく error フィールドにする
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttrKey, err}, fields[1:]...)
		}
	}
	e := Entry{Level: level, Message: msg, Fields: make(map[string]interface{})}
	for _, kv := range [][]any{t.fields, fields} {
		for i := 0; i+1 < len(kv); i += 2 {
			v := kv[i+1]
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			e.Fields[fmt.Sprint(kv[i])] = v
		}
	}

	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.entries = append(t.rec.entries, e)
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(t.rec.buf, "%s %s", level, msg)
	for _, k := range keys {
		fmt.Fprintf(t.rec.buf, " %s=%v", k, e.Fields[k])
	}
	t.rec.buf.WriteByte('\n')
}

// Entries returns a copy of everything recorded so far.
func (t *TestLogger) Entries() []Entry {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	return append([]Entry(nil), t.rec.entries...)
}

// ContainsMessage reports whether any entry has exactly this message.
func (t *TestLogger) ContainsMessage(msg string) bool {
	for _, e := range t.Entries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

// ContainsField reports whether any entry carries key with a value that
// prints like value, so 80 and int64(80) compare equal.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	want := fmt.Sprint(value)
	for _, e := range t.Entries() {
		if _, ok := e.Fields[key]; ok && e.Field(key) == want {
			return true
		}
	}
	return false
}

// Operations lists the OperationKey values in the order they were logged.
func (t *TestLogger) Operations() []string {
	var ops []string
	for _, e := range t.Entries() {
		if op := e.Field(OperationKey); op != "" {
			ops = append(ops, op)
		}
	}
	return ops
}

// Count returns the number of entries at level.
func (t *TestLogger) Count(level Level) int {
	n := 0
	for _, e := range t.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}
