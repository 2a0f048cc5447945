package runner

import (
	"encoding/json"
	"fmt"
	"math"

	"go.starlark.net/starlark"
)

// ToStarlark converts a JSON-shaped Go value into a Starlark value. Whole
// float64 values become ints, matching what a script author expects from a
// JSON payload like {"a": 1}.
func ToStarlark(v any) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(x), nil
	case string:
		return starlark.String(x), nil
	case int:
		return starlark.MakeInt(x), nil
	case int64:
		return starlark.MakeInt64(x), nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1<<53 {
			return starlark.MakeInt64(int64(x)), nil
		}
		return starlark.Float(x), nil
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return starlark.MakeInt64(n), nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q: %w", x, err)
		}
		return starlark.Float(f), nil
	case []any:
		elems := make([]starlark.Value, 0, len(x))
		for i, e := range x {
			ev, err := ToStarlark(e)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			elems = append(elems, ev)
		}
		return starlark.NewList(elems), nil
	case map[string]any:
		d := starlark.NewDict(len(x))
		for k, e := range x {
			ev, err := ToStarlark(e)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			if err := d.SetKey(starlark.String(k), ev); err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

// FromStarlark converts a script's return value back into a JSON-shaped Go
// value. Values with no JSON shape (functions, modules) are an error; the
// runner reports them as an unserializable return value.
func FromStarlark(v starlark.Value) (any, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(x), nil
	case starlark.Int:
		if n, ok := x.Int64(); ok {
			return n, nil
		}
		// Preserve arbitrary-precision ints as decimal strings.
		return x.String(), nil
	case starlark.Float:
		return float64(x), nil
	case starlark.String:
		return string(x), nil
	case starlark.Bytes:
		return string(x), nil
	case starlark.Tuple:
		return sliceFrom(x, len(x))
	case *starlark.List:
		return sliceFrom(x, x.Len())
	case *starlark.Set:
		return sliceFrom(x, x.Len())
	case *starlark.Dict:
		m := make(map[string]any, x.Len())
		for _, item := range x.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				key = item[0].String()
			}
			ev, err := FromStarlark(item[1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			m[key] = ev
		}
		return m, nil
	default:
		return nil, fmt.Errorf("value of type %s has no JSON shape", v.Type())
	}
}

func sliceFrom(it starlark.Iterable, n int) ([]any, error) {
	out := make([]any, 0, n)
	iter := it.Iterate()
	defer iter.Done()
	var elem starlark.Value
	for iter.Next(&elem) {
		v, err := FromStarlark(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
