package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"runtime"
	"time"
)

// SafeSerialize sanitiza um envelope bruto do upstream em uma árvore JSON
// estável. Valores não serializáveis são substituídos por objetos com
// marcador __type; nunca retorna erro — em falha devolve um objeto de
// fallback com __serialization_error.
func SafeSerialize(value interface{}) (result map[string]interface{}) {
	defer func() {
		// sanitizeValue não deve entrar em pânico, mas a ingestão nunca
		// pode ser abortada por um envelope hostil
		if r := recover(); r != nil {
			result = SerializationFallback(fmt.Errorf("panic: %v", r))
		}
	}()

	sanitized := sanitizeValue(reflect.ValueOf(value), 0)

	if m, ok := sanitized.(map[string]interface{}); ok {
		return m
	}

	return map[string]interface{}{"value": sanitized}
}

// SerializationFallback devolve o objeto de fallback gravado quando a
// sanitização falha
func SerializationFallback(err error) map[string]interface{} {
	return map[string]interface{}{
		"__serialization_error": true,
		"error":                 fmt.Sprintf("%v", err),
	}
}

const maxDepth = 16

// bytesProvider cobre tipos de buffer estrangeiros (bytes.Buffer e afins)
type bytesProvider interface {
	Bytes() []byte
}

func sanitizeValue(v reflect.Value, depth int) interface{} {
	if depth > maxDepth {
		return opaque(v)
	}

	if !v.IsValid() {
		return nil
	}

	if v.CanInterface() {
		if buf, ok := v.Interface().(bytesProvider); ok {
			return map[string]interface{}{
				"__type": "buffer",
				"data":   base64.StdEncoding.EncodeToString(buf.Bytes()),
			}
		}
	}

	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return sanitizeValue(v.Elem(), depth+1)

	case reflect.Bool:
		return v.Bool()

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()

	case reflect.Float32, reflect.Float64:
		return v.Float()

	case reflect.String:
		return v.String()

	case reflect.Slice, reflect.Array:
		// []byte vira {__type: bytes, data: base64}
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return map[string]interface{}{
				"__type": "bytes",
				"data":   base64.StdEncoding.EncodeToString(v.Bytes()),
			}
		}
		out := make([]interface{}, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			out = append(out, sanitizeValue(v.Index(i), depth+1))
		}
		return out

	case reflect.Map:
		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprintf("%v", iter.Key().Interface())
			out[key] = sanitizeValue(iter.Value(), depth+1)
		}
		return out

	case reflect.Struct:
		if v.CanInterface() {
			if t, ok := v.Interface().(time.Time); ok {
				return t.Format(time.RFC3339)
			}
		}
		out := make(map[string]interface{})
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			out[fieldName(field)] = sanitizeValue(v.Field(i), depth+1)
		}
		return out

	case reflect.Func:
		name := "anonymous"
		if fn := runtime.FuncForPC(v.Pointer()); fn != nil {
			name = fn.Name()
		}
		return map[string]interface{}{
			"__type": "function",
			"name":   name,
		}

	case reflect.Chan, reflect.UnsafePointer:
		return opaque(v)

	default:
		return opaque(v)
	}
}

func fieldName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		name := tag
		for i, r := range tag {
			if r == ',' {
				name = tag[:i]
				break
			}
		}
		if name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

func opaque(v reflect.Value) map[string]interface{} {
	return map[string]interface{}{
		"__type":   "opaque",
		"toString": fmt.Sprintf("%v", v),
	}
}

// MustJSON serializa com fallback; usado onde o payload sanitizado precisa
// virar bytes sem propagar erro
func MustJSON(value map[string]interface{}) []byte {
	data, err := json.Marshal(value)
	if err != nil {
		data, _ = json.Marshal(SerializationFallback(err))
	}
	return data
}
