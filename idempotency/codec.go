package idempotency

import (
	"fmt"

	"github.com/bytedance/sonic"
)

var jsonAPI = sonic.ConfigStd

// Codec converts dispatch results to and from bytes for byte-oriented
// backends.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

type jsonCodec struct{}

// JSON returns a Codec that decodes into generic values (map[string]any,
// []any, float64, string, bool, nil).
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return jsonAPI.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte) (any, error) {
	var v any
	if err := jsonAPI.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

type typedCodec[T any] struct{}

// JSONOf returns a Codec that decodes into T, so replayed results have the
// same Go type the handler returned.
func JSONOf[T any]() Codec { return typedCodec[T]{} }

func (typedCodec[T]) Marshal(v any) ([]byte, error) {
	if _, ok := v.(T); !ok && v != nil {
		var zero T
		return nil, fmt.Errorf("idempotency: codec for %T cannot encode %T", zero, v)
	}
	return jsonAPI.Marshal(v)
}

func (typedCodec[T]) Unmarshal(data []byte) (any, error) {
	var v T
	if err := jsonAPI.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
