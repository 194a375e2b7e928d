package datastore

import (
	"reflect"
	"strings"
	"time"
	"unicode"
)

// RecordOptions configures ToRecord.
type RecordOptions struct {
	OmitFields   map[string]bool
	KeyOverrides map[string]string
}

// ToRecord converts a struct into a row keyed by snake_case field names.
// Nil pointers become NULL and times are stored as RFC 3339 text.
func ToRecord[T any](value T, opts RecordOptions) map[string]any {
	result := make(map[string]any)
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return result
		}
		v = v.Elem()
	}

	appendFields(v, result, opts)
	return result
}

func appendFields(v reflect.Value, result map[string]any, opts RecordOptions) {
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := range v.NumField() {
		field := t.Field(i)
		if !field.IsExported() || opts.OmitFields[field.Name] {
			continue
		}

		value := v.Field(i)
		if field.Anonymous && value.Kind() == reflect.Struct {
			appendFields(value, result, opts)
			continue
		}

		key := toSnakeCase(field.Name)
		if override, ok := opts.KeyOverrides[field.Name]; ok {
			key = override
		}
		result[key] = columnValue(value)
	}
}

func columnValue(value reflect.Value) any {
	if value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}

	if ts, ok := value.Interface().(time.Time); ok {
		return ts.UTC().Format(time.RFC3339)
	}
	return value.Interface()
}

// toSnakeCase keeps acronyms together: BuybackURL -> buyback_url, ISBN13 -> isbn13.
func toSnakeCase(input string) string {
	runes := []rune(input)
	var builder strings.Builder
	builder.Grow(len(runes) + 4)

	for i, r := range runes {
		if !unicode.IsUpper(r) {
			builder.WriteRune(r)
			continue
		}

		if i > 0 {
			prev := runes[i-1]
			var next rune
			if i+1 < len(runes) {
				next = runes[i+1]
			}
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && unicode.IsLower(next)) {
				builder.WriteRune('_')
			}
		}
		builder.WriteRune(unicode.ToLower(r))
	}

	return builder.String()
}
