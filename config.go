package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const usage = `Usage:
  takeout-restore [flags] [root] [output]
  takeout-restore scan [flags] [root]
  takeout-restore inspect [--exiftool] <file>...

Flags:
  -c, --config          Path to a configuration file (default: config.toml)
  -r, --root            Takeout folder to read sidecars and media from
  -o, --output          Folder to write restored media into
  -e, --edited-word     Suffix Takeout gives edited copies (default: edited)
  -q, --quality         JPEG quality for re-encoded images, 1-100 (default: 90)
  -m, --max-dimension   Downsample images so no side exceeds this (default: off)
  -w, --workers         Items processed concurrently (default: 1)
  -f, --ffmpeg          ffmpeg binary used for videos (default: ffmpeg)
  -t, --timeout         Per-video encoder time limit, e.g. 5m (default: none)
  -n, --dry-run         Discover and plan without writing anything
  -d, --debug           Verbose logging`

const defaultConfigFile = "config.toml"

type Config struct {
	Root           string `toml:"root"`
	Output         string `toml:"output"`
	EditedWord     string `toml:"edited_word"`
	Quality        int    `toml:"quality"`
	MaxDimension   int    `toml:"max_dimension"`
	Workers        int    `toml:"workers"`
	FFmpeg         string `toml:"ffmpeg"`
	EncoderTimeout string `toml:"encoder_timeout"`
	Debug          bool   `toml:"debug"`

	DryRun bool `toml:"-"`

	encoderTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		EditedWord: "edited",
		Quality:    90,
		Workers:    1,
		FFmpeg:     "ffmpeg",
	}
}

// parseConfig builds a Config from defaults, the TOML file and args, in that
// order of precedence (args win). Positional arguments fill root and output
// when their flags are absent.
func parseConfig(name string, args []string, stderr io.Writer) (Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usage)
	}

	configFile := defaultConfigFile
	opts := defaultConfig()

	stringFlag := func(p *string, short, long, help string) {
		fs.StringVar(p, short, *p, help)
		fs.StringVar(p, long, *p, help)
	}
	intFlag := func(p *int, short, long, help string) {
		fs.IntVar(p, short, *p, help)
		fs.IntVar(p, long, *p, help)
	}
	boolFlag := func(p *bool, short, long, help string) {
		fs.BoolVar(p, short, *p, help)
		fs.BoolVar(p, long, *p, help)
	}

	stringFlag(&configFile, "c", "config", "Path to the configuration file")
	stringFlag(&opts.Root, "r", "root", "Takeout folder")
	stringFlag(&opts.Output, "o", "output", "Output folder")
	stringFlag(&opts.EditedWord, "e", "edited-word", "Edited-copy marker word")
	intFlag(&opts.Quality, "q", "quality", "JPEG quality")
	intFlag(&opts.MaxDimension, "m", "max-dimension", "Maximum image side")
	intFlag(&opts.Workers, "w", "workers", "Concurrent items")
	stringFlag(&opts.FFmpeg, "f", "ffmpeg", "ffmpeg binary")
	stringFlag(&opts.EncoderTimeout, "t", "timeout", "Per-video encoder time limit")
	boolFlag(&opts.DryRun, "n", "dry-run", "Do not write anything")
	boolFlag(&opts.Debug, "d", "debug", "Verbose logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[longFlagName(f.Name)] = true
	})

	cfg := defaultConfig()
	if _, err := os.Stat(configFile); err == nil {
		cfg, err = loadConfig(configFile, cfg)
		if err != nil {
			return Config{}, err
		}
	} else if set["config"] {
		return Config{}, fmt.Errorf("config file %s: %w", configFile, err)
	}

	// Override the config values with the command-line flags
	overrides := map[string]func(){
		"root":          func() { cfg.Root = opts.Root },
		"output":        func() { cfg.Output = opts.Output },
		"edited-word":   func() { cfg.EditedWord = opts.EditedWord },
		"quality":       func() { cfg.Quality = opts.Quality },
		"max-dimension": func() { cfg.MaxDimension = opts.MaxDimension },
		"workers":       func() { cfg.Workers = opts.Workers },
		"ffmpeg":        func() { cfg.FFmpeg = opts.FFmpeg },
		"timeout":       func() { cfg.EncoderTimeout = opts.EncoderTimeout },
		"debug":         func() { cfg.Debug = opts.Debug },
	}
	for name, apply := range overrides {
		if set[name] {
			apply()
		}
	}
	cfg.DryRun = opts.DryRun

	rest := fs.Args()
	if len(rest) > 0 && !set["root"] {
		cfg.Root = rest[0]
	}
	if len(rest) > 1 && !set["output"] {
		cfg.Output = rest[1]
	}
	if len(rest) > 2 {
		return Config{}, fmt.Errorf("unexpected arguments: %s", strings.Join(rest[2:], " "))
	}

	return cfg, nil
}

var shortFlags = map[string]string{
	"c": "config",
	"r": "root",
	"o": "output",
	"e": "edited-word",
	"q": "quality",
	"m": "max-dimension",
	"w": "workers",
	"f": "ffmpeg",
	"t": "timeout",
	"n": "dry-run",
	"d": "debug",
}

func longFlagName(name string) string {
	if long, ok := shortFlags[name]; ok {
		return long
	}
	return name
}

// loadConfig decodes a TOML file over base; keys absent from the file keep
// base's values.
func loadConfig(configFile string, base Config) (Config, error) {
	config := base
	if _, err := toml.DecodeFile(configFile, &config); err != nil {
		return Config{}, fmt.Errorf("error in parsing config file %s: %w", configFile, err)
	}
	return config, nil
}

// validateRoot checks only what a read-only scan needs.
func (c *Config) validateRoot() error {
	if c.Root == "" {
		return errors.New("root folder is required")
	}
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("root folder: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root folder %s is not a directory", c.Root)
	}
	if c.EditedWord == "" {
		return errors.New("edited word must not be empty")
	}
	return nil
}

// Validate checks a configuration for an export run and resolves derived fields.
func (c *Config) Validate() error {
	if err := c.validateRoot(); err != nil {
		return err
	}
	if c.Output == "" {
		return errors.New("output folder is required")
	}

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(c.Output)
	if err != nil {
		return err
	}
	if rel, err := filepath.Rel(root, out); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output folder %s must not be inside root folder %s", c.Output, c.Root)
	}

	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", c.Quality)
	}
	if c.MaxDimension < 0 {
		return fmt.Errorf("max dimension must not be negative, got %d", c.MaxDimension)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.FFmpeg == "" {
		return errors.New("ffmpeg binary must not be empty")
	}

	c.encoderTimeout = 0
	if c.EncoderTimeout != "" {
		d, err := time.ParseDuration(c.EncoderTimeout)
		if err != nil {
			return fmt.Errorf("encoder timeout: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("encoder timeout must not be negative, got %s", d)
		}
		c.encoderTimeout = d
	}
	return nil
}
