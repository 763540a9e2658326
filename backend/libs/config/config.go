// Package config loads service settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PathEnv names the variable pointing at an optional YAML config file.
const PathEnv = "CONFIG_FILE"

// LoadConfig fills target (pointer to struct) from the YAML file named by CONFIG_FILE, if set,
// then applies environment overrides. Keys come from `env:"KEY"` tags or are derived from the
// field path (PARENT_CHILD). A tag of "-" skips the field.
func LoadConfig(target interface{}) error {
	return LoadConfigFrom(os.Getenv(PathEnv), target)
}

// LoadConfigFrom is LoadConfig with an explicit file path. An empty path skips the file.
// ${VAR} references inside the file are expanded from the environment before decoding.
func LoadConfigFrom(path string, target interface{}) error {
	if target == nil {
		return errors.New("config: target is nil")
	}
	root := reflect.ValueOf(target)
	if root.Kind() != reflect.Ptr || root.Elem().Kind() != reflect.Struct {
		return errors.New("config: target must be pointer to struct")
	}

	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), target); err != nil {
			return fmt.Errorf("config: decode yaml: %w", err)
		}
	}

	for _, f := range envFields(root.Elem(), "") {
		value, ok := os.LookupEnv(f.key)
		if !ok {
			continue
		}
		if err := setField(f.value, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("config: parse %s: %w", f.key, err)
		}
	}
	return nil
}

type envField struct {
	key   string
	value reflect.Value
}

// envFields flattens the settable leaves of v with their environment keys.
func envFields(v reflect.Value, prefix string) []envField {
	var out []envField
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if sf.Anonymous {
			out = append(out, envFields(fv, prefix)...)
			continue
		}

		tag := sf.Tag.Get("env")
		if tag == "-" {
			continue
		}
		key := envKey(prefix, sf.Name)
		if tag != "" {
			key = envKey("", tag)
		}

		if fv.Kind() == reflect.Struct && fv.Type() != reflect.TypeOf(time.Time{}) {
			out = append(out, envFields(fv, key)...)
			continue
		}
		out = append(out, envField{key: key, value: fv})
	}
	return out
}

func envKey(prefix, name string) string {
	name = strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// setField parses raw into field according to its type.
func setField(field reflect.Value, raw string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	bits := 0
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		bits = field.Type().Bits()
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, bits)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, bits)
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, bits)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		items := []string{}
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		field.Set(reflect.ValueOf(items))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
