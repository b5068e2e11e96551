package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Defaulter is implemented by configs that validate themselves after loading.
type Defaulter interface {
	ApplyDefaults()
	Validate() error
}

type loaderOptions struct {
	configFile string
	envFile    string
	envPrefix  string
	searchDirs []string
}

// Option customizes Load.
type Option func(*loaderOptions)

// WithConfigFile sets an explicit YAML file.
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile sets an explicit .env file.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvPrefix sets the environment variable prefix. Defaults to the
// upper-cased service name.
func WithEnvPrefix(prefix string) Option {
	return func(o *loaderOptions) { o.envPrefix = prefix }
}

// WithSearchDirs overrides the directories searched for config.yml and .env.
func WithSearchDirs(dirs ...string) Option {
	return func(o *loaderOptions) { o.searchDirs = dirs }
}

// Load reads configuration for service into cfg. If cfg implements
// Defaulter, defaults are applied and the result validated.
func Load(service string, cfg interface{}, opts ...Option) error {
	o := loaderOptions{
		envPrefix:  strings.ToUpper(strings.ReplaceAll(service, "-", "_")),
		searchDirs: []string{".", "./config", "./cmd/" + service},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.configFile == "" {
		o.configFile = findFile(o.searchDirs, "config.yml", "config.yaml")
	}
	if o.envFile == "" {
		o.envFile = findFile(o.searchDirs, ".env."+service, ".env")
	}

	if o.envFile != "" {
		// godotenv.Load never overrides variables already in the environment.
		if err := godotenv.Load(o.envFile); err != nil {
			return fmt.Errorf("config: load env file %s: %w", o.envFile, err)
		}
	}

	v := viper.New()
	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", o.configFile, err)
		}
	}
	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindStruct(v, "", reflect.TypeOf(cfg))

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: unmarshal for %s: %w", service, err)
	}

	if d, ok := cfg.(Defaulter); ok {
		d.ApplyDefaults()
		if err := d.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

func findFile(dirs []string, names ...string) string {
	for _, name := range names {
		for _, dir := range dirs {
			path := dir + "/" + name
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindStruct registers every mapstructure leaf key so AutomaticEnv can
// resolve it during Unmarshal even when the file omits it.
func bindStruct(v *viper.Viper, prefix string, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if opts == "squash" {
			bindStruct(v, prefix, ft)
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		if ft.Kind() == reflect.Struct && ft.String() != "time.Time" {
			bindStruct(v, key, ft)
			continue
		}
		_ = v.BindEnv(key)
	}
}
