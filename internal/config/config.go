// Package config loads the flat CLI options struct from the TOML file and
// the environment, and watches the file for sections that apply live.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/videofx/internal/effects"
	"github.com/smazurov/videofx/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "VIDEOFX_"

// LoadConfig fills opts, a pointer to a flat options struct, from the TOML
// file named by its Config field and from VIDEOFX_* variables. Precedence is
// CLI flag > environment > file. Fields whose flag was set on cmd are left
// alone; cmd may be nil.
func LoadConfig(opts any, cmd *cobra.Command) error {
	bindings := bind(opts, changedFlags(cmd))

	var doc map[string]any
	if path := configPath(opts); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return fmt.Errorf("failed to read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("failed to parse TOML config: %w", err)
			}
		}
	}

	for _, b := range bindings {
		if b.fromCLI {
			continue
		}
		if b.tomlPath != "" && doc != nil {
			if value := getNestedValue(doc, b.tomlPath); value != nil {
				if err := assign(b.field, value, false); err != nil {
					return fmt.Errorf("config %s: %w", b.tomlPath, err)
				}
			}
		}
		if b.envKey == "" {
			continue
		}
		if raw, ok := os.LookupEnv(EnvPrefix + b.envKey); ok && raw != "" {
			if err := assign(b.field, raw, true); err != nil {
				return fmt.Errorf("env %s%s: %w", EnvPrefix, b.envKey, err)
			}
		}
	}
	return nil
}

// binding ties one options field to its sources.
type binding struct {
	field    reflect.Value
	tomlPath string
	envKey   string
	fromCLI  bool
}

func bind(opts any, changed map[string]bool) []binding {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()
	out := make([]binding, 0, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		out = append(out, binding{
			field:    v.Field(i),
			tomlPath: sf.Tag.Get("toml"),
			envKey:   sf.Tag.Get("env"),
			fromCLI:  changed[fieldNameToFlag(sf.Name)],
		})
	}
	return out
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = true
	})
	return changed
}

func configPath(opts any) string {
	f := reflect.ValueOf(opts).Elem().FieldByName("Config")
	if !f.IsValid() || f.Kind() != reflect.String {
		return ""
	}
	return f.String()
}

var durationType = reflect.TypeOf(time.Duration(0))

// fieldNameToFlag maps a field name to its humacli flag: "LoggingLevel"
// becomes "logging-level".
func fieldNameToFlag(fieldName string) string {
	var b strings.Builder
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// getNestedValue resolves a dotted path such as "logging.level".
func getNestedValue(data map[string]any, path string) any {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return data[head]
	}
	next, ok := data[head].(map[string]any)
	if !ok {
		return nil
	}
	return getNestedValue(next, rest)
}

// assign stores value into field. value is either a decoded TOML value or,
// when fromEnv is set, a raw string from the environment. Only environment
// strings are parsed for non-string fields and split on commas for string
// slices.
func assign(field reflect.Value, value any, fromEnv bool) error {
	if !field.CanSet() {
		return nil
	}
	s, isString := value.(string)

	switch {
	case field.Type() == durationType:
		if !isString {
			return fmt.Errorf("expected a duration string, got %T", value)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	case field.Kind() == reflect.String:
		if !isString {
			return fmt.Errorf("expected a string, got %T", value)
		}
		field.SetString(s)
		return nil
	case isString && !fromEnv:
		return fmt.Errorf("expected %s, got a string", field.Kind())
	}

	switch field.Kind() {
	case reflect.Bool:
		if isString {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return err
			}
			field.SetBool(b)
			return nil
		}
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected a bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		if isString {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(n)
			return nil
		}
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		default:
			return fmt.Errorf("expected an integer, got %T", value)
		}
	case reflect.Float64:
		switch f := value.(type) {
		case string:
			parsed, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return err
			}
			field.SetFloat(parsed)
		case float64:
			field.SetFloat(f)
		case int64:
			field.SetFloat(float64(f))
		default:
			return fmt.Errorf("expected a number, got %T", value)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		var items []string
		if isString {
			for _, part := range strings.Split(s, ",") {
				items = append(items, strings.TrimSpace(part))
			}
		} else {
			arr, ok := value.([]any)
			if !ok {
				return fmt.Errorf("expected an array, got %T", value)
			}
			for _, item := range arr {
				str, ok := item.(string)
				if !ok {
					return fmt.Errorf("expected string items, got %T", item)
				}
				items = append(items, str)
			}
		}
		field.Set(reflect.ValueOf(items))
	}
	return nil
}

// LoadLoggingConfig loads the [logging] section. Returns the default config
// if the file doesn't exist or can't be parsed.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := defaultLogging()
	if configPath == "" {
		return cfg
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}
	var raw rawLive
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg
	}
	return raw.logging()
}

// Live holds the sections applied without a restart.
type Live struct {
	Logging logging.Config
	Effects effects.Config
}

// rawLive mirrors the file. Logging keys other than level and format are
// module levels, which also accepts the flat style:
//
//	[logging]
//	level = "info"
//	graph = "debug"
type rawLive struct {
	Logging map[string]any `toml:"logging"`
	Effects effects.Config `toml:"effects"`
}

func (r rawLive) logging() logging.Config {
	cfg := defaultLogging()
	for key, value := range r.Logging {
		switch v := value.(type) {
		case string:
			switch key {
			case "level":
				cfg.Level = v
			case "format":
				cfg.Format = v
			default:
				cfg.Modules[key] = v
			}
		case map[string]any:
			if key != "modules" {
				continue
			}
			for module, level := range v {
				if s, ok := level.(string); ok {
					cfg.Modules[module] = s
				}
			}
		}
	}
	return cfg
}

func defaultLogging() logging.Config {
	return logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
}

// LoadLive reads the live sections. Unlike LoadLoggingConfig it reports read
// and parse errors, so a watcher can keep the previous values.
func LoadLive(configPath string) (Live, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return Live{}, fmt.Errorf("failed to read config: %w", err)
	}
	var raw rawLive
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Live{}, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	if _, err := effects.ParseKind(raw.Effects.Effect); err != nil {
		return Live{}, fmt.Errorf("invalid [effects] section: %w", err)
	}
	return Live{Logging: raw.logging(), Effects: raw.Effects}, nil
}
