// Package cli implements the warptps command-line interface.
//
// Commands warp and morph images with thin plate splines defined by
// landmark files or stored landmark sets, transform point lists, render
// displacement fields, manage the landmark set store and serve the HTTP
// API. Settings come from a TOML file (--config, or warptps.toml in the
// working directory) and flags override them.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/yyyoichi/warptps"
	"github.com/yyyoichi/warptps/internal/fieldcache"
	"github.com/yyyoichi/warptps/internal/imageio"
	"github.com/yyyoichi/warptps/landmarks"
)

const appName = "warptps"

// Version is reported by --version and the HTTP API.
var Version = "dev"

const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds state shared by all commands.
type CLI struct {
	Logger *log.Logger
	Out    io.Writer

	configPath string
	verbose    bool
	config     Config

	// kernel overrides
	exponent, scale float64
	solver          string
}

func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level), Out: os.Stdout}
}

func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

func (c *CLI) print() printer {
	return printer{w: c.Out}
}

// RootCommand creates the root command with every subcommand registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "warptps warps images with thin plate splines",
		Long:          `warptps deforms images so that source landmarks land on destination landmarks, morphs between images and serves the same operations over HTTP.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			cfg, err := loadConfig(c.configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("r-exponent") {
				cfg.Kernel.Exponent = c.exponent
			}
			if flags.Changed("k") {
				cfg.Kernel.Scale = c.scale
			}
			if flags.Changed("solver") {
				cfg.Kernel.Solver = c.solver
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			c.config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "TOML config file (default ./"+defaultConfigFile+" if present)")
	root.PersistentFlags().Float64Var(&c.exponent, "r-exponent", 2, "kernel exponent")
	root.PersistentFlags().Float64Var(&c.scale, "k", 1, "kernel scale")
	root.PersistentFlags().StringVar(&c.solver, "solver", "partial", "system solver: partial, full or pinv")

	root.AddCommand(c.warpCommand())
	root.AddCommand(c.morphCommand())
	root.AddCommand(c.pointsCommand())
	root.AddCommand(c.fieldCommand())
	root.AddCommand(c.landmarksCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.configCommand())
	return root
}

// Execute runs the command line with args.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(c.Out)
	return root.ExecuteContext(ctx)
}

// dataDir is $XDG_DATA_HOME/warptps or ~/.local/share/warptps.
func dataDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName), nil
}

// cacheDir is $XDG_CACHE_HOME/warptps or ~/.cache/warptps.
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

func (c *CLI) openStore() (*landmarks.Store, error) {
	path := c.config.Store.Path
	if path == "" {
		dir, err := dataDir()
		if err != nil {
			return nil, fmt.Errorf("get data dir: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "landmarks.db")
	}
	return landmarks.Open(path)
}

// openFieldCache selects the field cache backend. Failing backends fall
// back to no caching with a warning.
func (c *CLI) openFieldCache(ctx context.Context, noCache bool) fieldcache.Cache {
	cfg := c.config.Cache
	if noCache || cfg.Backend == "" || cfg.Backend == "none" {
		return fieldcache.NewNullCache()
	}
	var (
		cache fieldcache.Cache
		err   error
	)
	switch cfg.Backend {
	case "redis":
		cache, err = fieldcache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		path := cfg.Path
		if path == "" {
			var dir string
			if dir, err = cacheDir(); err == nil {
				if err = os.MkdirAll(dir, 0o755); err == nil {
					path = filepath.Join(dir, "fields.db")
				}
			}
		}
		if err == nil {
			cache, err = fieldcache.NewBoltCache(path)
		}
	}
	if err != nil {
		c.Logger.Warn("field cache disabled", "backend", cfg.Backend, "err", err)
		return fieldcache.NewNullCache()
	}
	return cache
}

func (c *CLI) fetcher() *imageio.Fetcher {
	dir := c.config.Cache.HTTPDir
	if dir == "" {
		if base, err := cacheDir(); err == nil {
			dir = filepath.Join(base, "http")
		} else {
			dir = filepath.Join(os.TempDir(), appName+"_http_cache")
		}
	}
	return imageio.NewFetcher(dir, nil)
}

// landmarkFlags selects the landmarks of a command: a CSV or CBOR file,
// or a stored set, optionally with the image corners pinned.
type landmarkFlags struct {
	file    string
	set     string
	corners bool
}

func (f *landmarkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "landmarks", "l", "", "landmark file (.csv or .cbor)")
	cmd.Flags().StringVar(&f.set, "set", "", "stored landmark set")
	cmd.Flags().BoolVar(&f.corners, "corners", false, "pin the image corners")
}

// readLandmarkFile reads CSV, or CBOR for the .cbor extension.
func readLandmarkFile(path string) ([]warptps.Landmark, error) {
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return landmarks.Unmarshal(data)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return landmarks.ReadCSV(f)
}

func writeLandmarkFile(path string, ls []warptps.Landmark) error {
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		data, err := landmarks.Marshal(ls)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := landmarks.WriteCSV(f, ls); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// transform builds the transform selected by lf with the configured
// kernel. width and height size the corner landmarks.
func (c *CLI) transform(ctx context.Context, lf landmarkFlags, width, height int) (*warptps.Transform, error) {
	opts := c.config.Options()
	var ls []warptps.Landmark
	switch {
	case lf.set != "" && lf.file != "":
		return nil, fmt.Errorf("--landmarks and --set are exclusive")
	case lf.set != "":
		store, err := c.openStore()
		if err != nil {
			return nil, err
		}
		defer store.Close()
		set, err := store.Load(ctx, lf.set)
		if err != nil {
			return nil, err
		}
		opts = append(opts, set.Options()...)
		ls = set.Landmarks
	case lf.file != "":
		var err error
		if ls, err = readLandmarkFile(lf.file); err != nil {
			return nil, err
		}
	case !lf.corners:
		return nil, fmt.Errorf("one of --landmarks, --set or --corners is required")
	}
	if lf.corners {
		ls = append(warptps.CornerLandmarks(width, height, width, height), ls...)
	}
	loggerFromContext(ctx).Debug("landmarks", "count", len(ls))
	return warptps.New(append(opts, warptps.WithLandmarks(ls))...)
}
