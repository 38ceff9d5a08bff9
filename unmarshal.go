package dfn

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var (
	ErrNotPointer = errors.New("unmarshal target must be a non-nil pointer")
	ErrNotStruct  = errors.New("unmarshal target must be a pointer to struct")
)

// UnmarshalSection stores the entries of s in the struct pointed to by v.
//
// Struct tags select the entry key for each field:
//   - `dfn:"KEY"` - maps entry KEY to this field
//   - `dfn:"KEY,required"` - fails when KEY is missing
//   - `dfn:"-"` - ignores this field
//
// Without a tag the field name is used. Keys are matched case-insensitively.
// Integers accept decimal and 0x-prefixed hex. Slices are split on commas
// and whitespace.
//
// Example:
//
//	type Weapon struct {
//	    Name   string `dfn:"NAME"`
//	    ID     int    `dfn:"ID"`
//	    Damage []int  `dfn:"DAMAGE"`
//	    Newbie bool   `dfn:"NEWBIE"`
//	}
func UnmarshalSection(s *Section, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return ErrNotPointer
	}

	elem := rv.Elem()
	if elem.Kind() != reflect.Struct {
		return ErrNotStruct
	}

	entries := make(map[string]string, len(s.Entries))
	for k, val := range s.Entries {
		entries[strings.ToLower(k)] = val
	}

	if err := unmarshalStruct(entries, elem); err != nil {
		return fmt.Errorf("section [%s]: %w", s.Header, err)
	}
	return nil
}

// unmarshalStruct fills v from entries keyed by lower-cased entry key.
func unmarshalStruct(entries map[string]string, v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		if !fieldValue.CanSet() {
			continue
		}

		tag := field.Tag.Get("dfn")
		if tag == "-" {
			continue
		}

		key, opts := parseTag(tag)
		if key == "" {
			key = field.Name
		}

		value, ok := entries[strings.ToLower(key)]
		if !ok {
			if hasOption(opts, "required") {
				return fmt.Errorf("required entry %s not found", key)
			}
			continue
		}

		if err := setField(fieldValue, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("entry %s: %w", key, err)
		}
	}

	return nil
}

// setField converts value to the kind of field.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 0, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse as int: %w", err)
		}
		field.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 0, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse as uint: %w", err)
		}
		field.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse as float: %w", err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		return setSlice(field, value)
	case reflect.Ptr:
		ptr := reflect.New(field.Type().Elem())
		if err := setField(ptr.Elem(), value); err != nil {
			return err
		}
		field.Set(ptr)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

func setSlice(field reflect.Value, value string) error {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
	for i, part := range parts {
		if err := setField(slice.Index(i), part); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}
	field.Set(slice)
	return nil
}

func parseTag(tag string) (string, []string) {
	parts := strings.Split(tag, ",")
	return parts[0], parts[1:]
}

func hasOption(opts []string, option string) bool {
	for _, opt := range opts {
		if opt == option {
			return true
		}
	}
	return false
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "1", "on":
		return true, nil
	case "false", "no", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value: %s", s)
	}
}
