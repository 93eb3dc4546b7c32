package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/yyyoichi/warptps"
)

// defaultConfigFile is read from the working directory when --config is
// not given. A missing default file is not an error.
const defaultConfigFile = "warptps.toml"

type Config struct {
	Kernel KernelConfig `toml:"kernel"`
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
	Cache  CacheConfig  `toml:"cache"`
}

type KernelConfig struct {
	Exponent float64 `toml:"exponent"`
	Scale    float64 `toml:"scale"`
	// Solver is "partial", "full" or "pinv".
	Solver string `toml:"solver"`
}

type ServerConfig struct {
	Addr        string `toml:"addr"`
	MaxUploadMB int64  `toml:"max_upload_mb"`
	MaxFrames   int    `toml:"max_frames"`
}

type StoreConfig struct {
	// Path of the SQLite landmark set database.
	Path string `toml:"path"`
}

type CacheConfig struct {
	// Backend for presampled fields: "none", "bolt" or "redis".
	Backend       string   `toml:"backend"`
	Path          string   `toml:"path"`
	TTL           duration `toml:"ttl"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	// HTTPDir keeps responses of image URLs.
	HTTPDir string `toml:"http_dir"`
}

// duration reads TOML strings such as "24h".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func defaultConfig() Config {
	return Config{
		Kernel: KernelConfig{Exponent: 2, Scale: 1, Solver: "partial"},
		Server: ServerConfig{Addr: ":8080", MaxUploadMB: 32, MaxFrames: 120},
		Cache:  CacheConfig{Backend: "bolt", TTL: duration{24 * time.Hour}, RedisAddr: "localhost:6379"},
	}
}

// loadConfig reads path over the defaults. With an empty path the default
// file is used if present.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config %s: unknown key %s", path, undecoded[0])
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := warptps.ParseSolver(c.Kernel.Solver); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case "", "none", "bolt", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

// Options returns the transform options of the [kernel] section.
func (c Config) Options() []warptps.Option {
	solver, _ := warptps.ParseSolver(c.Kernel.Solver)
	return []warptps.Option{
		warptps.WithKernelExponent(c.Kernel.Exponent),
		warptps.WithKernelScale(c.Kernel.Scale),
		warptps.WithSolver(solver),
	}
}

func writeConfig(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
