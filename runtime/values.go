// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package runtime

import (
	"fmt"

	"go.starlark.net/starlark"
)

// toStarlark converts the JSON-shaped Go values that arrive as tool
// arguments. Unhandled types become their string form rather than failing
// the call.
func toStarlark(v interface{}) starlark.Value {
	switch v := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(v)
	case string:
		return starlark.String(v)
	case []byte:
		return starlark.Bytes(v)
	case int:
		return starlark.MakeInt(v)
	case int64:
		return starlark.MakeInt64(v)
	case float64:
		return starlark.Float(v)
	case []interface{}:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			elems[i] = toStarlark(e)
		}
		return starlark.NewList(elems)
	case map[string]interface{}:
		d := starlark.NewDict(len(v))
		for k, val := range v {
			_ = d.SetKey(starlark.String(k), toStarlark(val))
		}
		return d
	}
	return starlark.String(fmt.Sprintf("%v", v))
}

// fromStarlark converts a script's return value back to JSON-shaped Go.
func fromStarlark(v starlark.Value) (interface{}, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.String:
		return string(v), nil
	case starlark.Bytes:
		return []byte(v), nil
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i, nil
		}
		return v.String(), nil
	case starlark.Float:
		return float64(v), nil
	case *starlark.List:
		return fromIterable(v)
	case starlark.Tuple:
		return fromIterable(v)
	case *starlark.Dict:
		out := make(map[string]interface{}, v.Len())
		for _, item := range v.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				key = item[0].String()
			}
			val, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}
			out[key] = val
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %s result to a tool value", v.Type())
}

func fromIterable(it starlark.Iterable) (interface{}, error) {
	var out []interface{}
	iter := it.Iterate()
	defer iter.Done()
	var elem starlark.Value
	for iter.Next(&elem) {
		v, err := fromStarlark(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
