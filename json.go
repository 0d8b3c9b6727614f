package mapping

import (
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
)

// convert serializes the input to JSON and deserializes it into the target output.
// This is a lossy mapping if source and destination do not have compatible JSON structures.
// Prefer explicit mappers for complex/nested types.
func convert[Input any, Output any](input Input, output *Output) error {
	data, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("mapping: marshal failed: %w", err)
	}
	if err = json.Unmarshal(data, output); err != nil {
		return fmt.Errorf("mapping: unmarshal failed: %w", err)
	}
	return nil
}

// JSON returns a producing mapping from S to T through a JSON round-trip.
// Callers are responsible for compatible JSON field tags.
func JSON[S, T any]() Func {
	f := Producer(func(src S) (T, error) {
		var out T
		err := convert(src, &out)
		return out, err
	})
	f.origin = fmt.Sprintf("JSON[%s, %s]", reflect.TypeFor[S](), reflect.TypeFor[T]())
	return f
}

// JSONOverlay returns a mutating mapping that decodes the JSON form of S over
// an existing T, keeping fields S does not carry.
func JSONOverlay[S, T any]() Func {
	f := Mutator(func(src S, dst *T) error { return convert(src, dst) })
	f.origin = fmt.Sprintf("JSONOverlay[%s, %s]", reflect.TypeFor[S](), reflect.TypeFor[T]())
	return f
}
