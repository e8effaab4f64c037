package applog

import (
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ExtractFieldValue returns the plain value zap would encode for field.
// Namespace and skip fields carry no value of their own and are rejected.
func ExtractFieldValue(field zap.Field) (interface{}, error) {
	switch field.Type {
	case zapcore.NamespaceType, zapcore.SkipType:
		return nil, fmt.Errorf("field %q has no encodable value", field.Key)
	}

	enc := zapcore.NewMapObjectEncoder()
	field.AddTo(enc)

	value, ok := enc.Fields[field.Key]
	if !ok {
		return nil, fmt.Errorf("field %q has no encodable value", field.Key)
	}
	return value, nil
}
