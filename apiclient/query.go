package apiclient

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"time"
)

// EncodeQuery serializes params for the backend. Arrays repeat the key
// (tag=a&tag=b) and nil values, nil pointers and empty slices are omitted.
// Keys are sorted.
func EncodeQuery(params Params) string {
	values := url.Values{}
	for key, v := range params {
		addValue(values, key, reflect.ValueOf(v))
	}
	return values.Encode()
}

func addValue(values url.Values, key string, v reflect.Value) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return
		}
		// []byte is a scalar
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			values.Add(key, string(v.Bytes()))
			return
		}
		for i := 0; i < v.Len(); i++ {
			addValue(values, key, v.Index(i))
		}
	default:
		values.Add(key, formatScalar(v))
	}
}

func formatScalar(v reflect.Value) string {
	if v.CanInterface() {
		switch x := v.Interface().(type) {
		case time.Time:
			return x.Format(time.RFC3339)
		case fmt.Stringer:
			return x.String()
		}
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	default:
		return fmt.Sprint(v.Interface())
	}
}
