package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Extra holds object members that have no typed field.
type Extra map[string]json.RawMessage

var fieldCache sync.Map // reflect.Type -> map[string][]int

// jsonFields maps each JSON key of struct type t to its field index,
// descending into embedded structs the way encoding/json does.
func jsonFields(t reflect.Type) map[string][]int {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(map[string][]int)
	}
	fields := make(map[string][]int)
	collectFields(t, nil, fields)
	fieldCache.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type, prefix []int, out map[string][]int) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			collectFields(f.Type, index, out)
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out[name] = index
	}
}

// encode marshals v without HTML escaping and without a trailing newline.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// marshalObject encodes plain (a struct value) merged with extra as one
// object with sorted keys. Typed fields win over extra keys of the same name.
func marshalObject(plain any, extra Extra) ([]byte, error) {
	data, err := encode(plain)
	if err != nil {
		return nil, err
	}
	members := make(map[string]json.RawMessage, len(extra))
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, typed := members[key]; !typed {
			members[key] = value
		}
	}
	return encode(members)
}

// unmarshalObject decodes data into plain (a pointer to struct) and returns
// the members that have no typed field.
func unmarshalObject(data []byte, plain any) (Extra, error) {
	members, err := objectMembers(data)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, plain); err != nil {
		return nil, err
	}
	fields := jsonFields(reflect.TypeOf(plain).Elem())
	var extra Extra
	for key, value := range members {
		if _, typed := fields[key]; typed {
			continue
		}
		if extra == nil {
			extra = make(Extra)
		}
		extra[key] = value
	}
	return extra, nil
}

func objectMembers(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("expected JSON object")
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// cloneRecord returns a deep copy of v taken through its JSON form, extra
// members included.
func cloneRecord[T any](v *T) (*T, error) {
	data, err := encode(v)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// overlay copies into dst every member present in body: typed members from a
// fresh decode of body, untyped members into extra. Keys for which skip
// returns true are left to the caller. dst and fresh must be pointers to the
// same struct type.
func overlay(dst, fresh any, members map[string]json.RawMessage, extra *Extra, skip func(string) bool) {
	dv := reflect.ValueOf(dst).Elem()
	fv := reflect.ValueOf(fresh).Elem()
	fields := jsonFields(dv.Type())
	for key, value := range members {
		if key == validatorKey || key == timestampKey {
			continue
		}
		if skip != nil && skip(key) {
			continue
		}
		if index, typed := fields[key]; typed {
			dv.FieldByIndex(index).Set(fv.FieldByIndex(index))
			continue
		}
		if *extra == nil {
			*extra = make(Extra)
		}
		(*extra)[key] = value
	}
}

// numberOf extracts an integer member from a raw object, reporting whether it
// was present and numeric.
func numberOf(raw json.RawMessage, key string) (int, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, false
	}
	value, ok := probe[key]
	if !ok {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(value, &n); err != nil {
		return 0, false
	}
	return n, true
}
