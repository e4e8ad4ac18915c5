package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{Level: "debug", Format: "json", Output: buf, ServiceName: "stockcast-test"})
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf)

	ctx := base.WithContext(context.Background())
	ctx = SetJobID(ctx, "job-1")
	ctx = SetScope(ctx, "North Zone")
	ctx = SetRequestID(ctx, "req-7")
	ctx = SetComponent(ctx, "orchestrator")

	CtxInfo(ctx, "progress %d/%d", 3, 5)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "progress 3/5", line["message"])
	assert.Equal(t, "job-1", line[FieldJobID])
	assert.Equal(t, "North Zone", line[FieldScope])
	assert.Equal(t, "stockcast-test", line["service"])
	assert.Equal(t, "req-7", line[FieldRequestID])
	assert.Equal(t, "orchestrator", line[FieldComponent])
	assert.Equal(t, "job-1", GetJobID(ctx))
	assert.Equal(t, "req-7", GetRequestID(ctx))
}

func TestEntryAddsMetricFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())

	With(Fields{FieldFailed: 1}).WithCount(5).WithDuration(42).WithStatus("completed").Info(ctx, "job finished")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.EqualValues(t, 5, line[FieldCount])
	assert.EqualValues(t, 1, line[FieldFailed])
	assert.EqualValues(t, 42, line[FieldDurationMs])
	assert.Equal(t, "completed", line[FieldStatus])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
	assert.Same(t, GetDefault(), FromContext(nil)) //nolint:staticcheck
	assert.Equal(t, "", GetRequestID(context.Background()))
}

func TestLevelParsing(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  string
	}{
		{"debug", "debug", "debug"},
		{"warn", "warn", "warning"},
		{"unknown falls back to info", "loud", "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(&Config{Level: tt.level, Output: &bytes.Buffer{}})
			assert.Equal(t, tt.want, l.Logger.GetLevel().String())
		})
	}
}
