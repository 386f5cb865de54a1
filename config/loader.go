package config

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem is the slice of the OS the loader touches.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem is the process file system.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// LoadEnv never overrides variables already set in the process.
func (rfs *RealFileSystem) LoadEnv(p string) error { return godotenv.Load(p) }

// Resolver finds a service's config.yml and .env file.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles are the files a load reads. Empty means none found.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles prefers explicit paths from opts and otherwise searches
// the service's cmd directory, then config/, then the working directory.
func (cr *Resolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	files := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	dirs := searchDirs(serviceName)
	if files.ConfigFile == "" {
		files.ConfigFile = cr.first(dirs, "config.yml")
	}
	if files.EnvFile == "" {
		files.EnvFile = cr.first(dirs, ".env."+serviceName, ".env")
	}
	return files
}

// first returns the first existing name, trying every directory for a
// name before moving on to the next name.
func (cr *Resolver) first(dirs []string, names ...string) string {
	for _, name := range names {
		for _, dir := range dirs {
			p := path.Join(dir, name)
			if !strings.HasPrefix(p, "..") {
				p = "./" + p
			}
			if cr.FileSystem.Exists(p) {
				return p
			}
		}
	}
	return ""
}

// searchDirs lists candidate directories relative to the working
// directory and to its parents, so tests run from a package directory
// still find the repository's files.
func searchDirs(serviceName string) []string {
	var dirs []string
	for _, up := range []string{"", "..", "../.."} {
		dirs = append(dirs,
			path.Join(up, "cmd", serviceName),
			path.Join(up, "config"),
		)
	}
	return append(dirs, ".")
}

// LoaderConfig holds the options of one LoadConfig call.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
	// EnvPrefix restricts env binding to PREFIX_* variables; the prefix is
	// stripped before key matching.
	EnvPrefix string
}

// LoaderOption configures LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem replaces the OS file system.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile skips the config.yml search.
func WithConfigFile(p string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = p }
}

// WithEnvFile skips the .env search.
func WithEnvFile(p string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = p }
}

// WithEnvPrefix binds only PREFIX_* environment variables, so
// FLOWKIT_SERVER_PORT sets server.port.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvPrefix = strings.ToUpper(strings.TrimSuffix(prefix, "_")) }
}

// LoadConfig reads config.yml, then the .env file, then the environment,
// later sources winning, and decodes the result into cfg. A missing
// config file is not an error; one that does not parse is.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: &RealFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}
	files := (&Resolver{FileSystem: lc.FileSystem}).ResolveFiles(serviceName, lc)

	v := viper.New()
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", files.ConfigFile, err)
		}
	}
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			return fmt.Errorf("load env file %s: %w", files.EnvFile, err)
		}
	}
	bindEnv(v, lc.EnvPrefix)

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode %s config: %w", serviceName, err)
	}
	return nil
}

// bindEnv sets every environment variable under each key shape it could
// address, since underscores inside key names (base_url, api_key) make
// the nesting ambiguous.
func bindEnv(v *viper.Viper, prefix string) {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if prefix != "" {
			if key, ok = strings.CutPrefix(key, prefix+"_"); !ok || key == "" {
				continue
			}
		}
		for _, variant := range generateEnvKeyVariants(key) {
			v.Set(variant, value)
		}
	}
}

// generateEnvKeyVariants nests the leading parts and keeps the rest as
// one underscored leaf:
//
//	TASKS_REMOTE_BASE_URL -> tasks_remote_base_url, tasks.remote_base_url,
//	                         tasks.remote.base_url, tasks.remote.base.url
func generateEnvKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	variants := []string{lower}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
	}
	return variants
}
