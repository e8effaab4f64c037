package applog

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"testing"
	"time"
)

func TestExtractFieldValue(t *testing.T) {
	tests := []struct {
		field zap.Field
		want  interface{}
	}{
		{zap.String("login", "alpha"), "alpha"},
		{zap.Int("cycle", 2), int64(2)},
		{zap.Bool("ok", true), true},
		{zap.Duration("timeout", time.Second), time.Second},
		{zap.Error(errors.New("boom")), "boom"},
	}

	for _, tt := range tests {
		got, err := ExtractFieldValue(tt.field)
		assert.NoError(t, err, tt.field.Key)
		assert.Equal(t, tt.want, got, tt.field.Key)
	}
}

func TestExtractFieldValueRejectsValuelessFields(t *testing.T) {
	_, err := ExtractFieldValue(zap.Namespace("scope"))
	assert.ErrorContains(t, err, "scope")

	_, err = ExtractFieldValue(zap.Skip())
	assert.Error(t, err)
}
