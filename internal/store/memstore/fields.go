package memstore

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// Documents are stored as pointers to struct copies. Field access goes by the
// snake_case json tag, which matches the gorm column names of the models
// package, so filters and patches behave identically against both backends.

var fieldIndexCache sync.Map // reflect.Type -> map[string]int

func fieldIndexes(t reflect.Type) map[string]int {
	if cached, ok := fieldIndexCache.Load(t); ok {
		return cached.(map[string]int)
	}
	idx := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if comma := strings.Index(tag, ","); comma >= 0 {
			tag = tag[:comma]
		}
		if tag == "" || tag == "-" {
			tag = toSnake(f.Name)
		}
		idx[tag] = i
	}
	fieldIndexCache.Store(t, idx)
	return idx
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func structValue(doc any) (reflect.Value, bool) {
	v := reflect.ValueOf(doc)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	return v, true
}

func fieldValue(doc any, field string) (any, bool) {
	v, ok := structValue(doc)
	if !ok {
		return nil, false
	}
	i, ok := fieldIndexes(v.Type())[field]
	if !ok {
		return nil, false
	}
	return v.Field(i).Interface(), true
}

func setFieldValue(doc any, field string, value any) error {
	v, ok := structValue(doc)
	if !ok || !v.CanSet() {
		return fmt.Errorf("document is not a settable struct pointer")
	}
	i, ok := fieldIndexes(v.Type())[field]
	if !ok {
		return fmt.Errorf("unknown field %q", field)
	}
	target := v.Field(i)

	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	val := reflect.ValueOf(value)
	switch {
	case val.Type().AssignableTo(target.Type()):
		target.Set(val)
	case val.Type().ConvertibleTo(target.Type()):
		target.Set(val.Convert(target.Type()))
	case target.Type().Kind() == reflect.Pointer && val.Type().AssignableTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(val)
		target.Set(p)
	case target.Type().Kind() == reflect.Pointer && val.Type().ConvertibleTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(val.Convert(target.Type().Elem()))
		target.Set(p)
	default:
		return fmt.Errorf("cannot assign %T", value)
	}
	return nil
}

// ensureID returns the document ID, assigning a generated one when empty.
func ensureID(doc any, gen func() string) (string, error) {
	v, ok := structValue(doc)
	if !ok {
		return "", fmt.Errorf("memstore: document must be a struct pointer")
	}
	i, ok := fieldIndexes(v.Type())["id"]
	if !ok {
		return "", fmt.Errorf("memstore: document has no id field")
	}
	f := v.Field(i)
	if f.String() == "" {
		if !f.CanSet() {
			return "", fmt.Errorf("memstore: document id is not settable")
		}
		f.SetString(gen())
	}
	return f.String(), nil
}

// stamp sets the server-assigned audit timestamps.
func stamp(doc any, now time.Time, created bool) {
	v, ok := structValue(doc)
	if !ok {
		return
	}
	idx := fieldIndexes(v.Type())
	if created {
		if i, ok := idx["created_at"]; ok && v.Field(i).CanSet() {
			v.Field(i).Set(reflect.ValueOf(now))
		}
	}
	if i, ok := idx["updated_at"]; ok && v.Field(i).CanSet() {
		v.Field(i).Set(reflect.ValueOf(now))
	}
}

// cloneValue copies a document so stored state never aliases caller memory.
// Pointer fields (only *time.Time in the models) get fresh allocations.
func cloneValue(doc any) any {
	src, ok := structValue(doc)
	if !ok {
		return doc
	}
	dst := reflect.New(src.Type())
	dst.Elem().Set(src)
	for i := 0; i < src.NumField(); i++ {
		f := dst.Elem().Field(i)
		if f.Kind() == reflect.Pointer && !f.IsNil() && f.CanSet() {
			p := reflect.New(f.Type().Elem())
			p.Elem().Set(f.Elem())
			f.Set(p)
		}
	}
	return dst.Interface()
}

// copyInto copies a stored document into dest, which must be a pointer to a
// struct of the same type.
func copyInto(doc, dest any) error {
	src, ok := structValue(doc)
	if !ok {
		return fmt.Errorf("memstore: stored document is not a struct")
	}
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("memstore: dest must be a non-nil pointer")
	}
	de := dv.Elem()
	if de.Type() != src.Type() {
		return fmt.Errorf("memstore: dest type %s does not match stored %s", de.Type(), src.Type())
	}
	cloned, _ := structValue(cloneValue(doc))
	de.Set(cloned)
	return nil
}

// copySlice copies matched documents into dest, a pointer to a slice of the
// stored struct type.
func copySlice(docs []any, dest any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() || dv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("memstore: dest must be a pointer to a slice")
	}
	elemType := dv.Elem().Type().Elem()
	out := reflect.MakeSlice(dv.Elem().Type(), 0, len(docs))
	for _, doc := range docs {
		src, ok := structValue(cloneValue(doc))
		if !ok || src.Type() != elemType {
			return fmt.Errorf("memstore: stored type does not match dest slice")
		}
		out = reflect.Append(out, src)
	}
	dv.Elem().Set(out)
	return nil
}

// compareValues orders two values of compatible kinds: -1, 0, or 1.
// Numerics compare numerically, times chronologically, everything else as
// strings.
func compareValues(a, b any) int {
	if at, aok := asTime(a); aok {
		if bt, bok := asTime(b); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	if ai, aok := asInt(a); aok {
		if bi, bok := asInt(b); bok {
			switch {
			case ai < bi:
				return -1
			case ai > bi:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(asString(a), asString(b))
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, true
		}
		return *t, true
	default:
		return time.Time{}, false
	}
}

func asInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return int64(rv.Float()), true
	default:
		return 0, false
	}
}

func asString(v any) string {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String()
	}
	return fmt.Sprintf("%v", v)
}
