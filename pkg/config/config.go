// Package config loads pipeline parameters from defaults, optional .env files
// and TEXGRAD_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"

	"github.com/Fepozopo/texgrad/pkg/logger"
)

// Config holds every tunable of the boundary pipeline.
type Config struct {
	Orientations  int     // half-disc orientations per gradient
	Radius        int     // disc radius for brightness and color gradients
	TextureRadius int     // disc radius for the texture gradient
	Bins          int     // quantization bins for brightness and color channels
	Textons       int     // number of texton clusters
	Border        int     // border trimmed after filtering
	Seed          int64   // clustering seed
	SmoothSigma   float64 // sigma (in bins) of the histogram smoothing kernel, 0 disables
	Workers       int     // parallel workers, 0 means GOMAXPROCS
	Distance      string  // chi2, l1 or l2
	LogLevel      string  // debug, info, warn, error
	LogFormat     string  // text, json, zerolog, console or none
}

// Default returns the parameters of the reference contour detector.
func Default() Config {
	return Config{
		Orientations:  8,
		Radius:        5,
		TextureRadius: 10,
		Bins:          25,
		Textons:       32,
		Border:        30,
		Seed:          1,
		SmoothSigma:   0,
		Workers:       0,
		Distance:      "chi2",
		LogLevel:      "info",
		LogFormat:     "none",
	}
}

const prefix = "TEXGRAD_"

// Load starts from Default, applies every readable .env file in paths (later
// files win, missing files are skipped) and then the process environment.
func Load(paths ...string) (Config, error) {
	vals := map[string]string{}
	for _, p := range paths {
		m, err := godotenv.Read(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("read %s: %w", p, err)
		}
		for k, v := range m {
			vals[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, prefix) {
			parts := strings.SplitN(kv, "=", 2)
			vals[parts[0]] = parts[1]
		}
	}
	cfg := Default()
	if err := cfg.apply(vals); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(vals map[string]string) error {
	ints := map[string]*int{
		"ORIENTATIONS":   &c.Orientations,
		"RADIUS":         &c.Radius,
		"TEXTURE_RADIUS": &c.TextureRadius,
		"BINS":           &c.Bins,
		"TEXTONS":        &c.Textons,
		"BORDER":         &c.Border,
		"WORKERS":        &c.Workers,
	}
	for name, dst := range ints {
		v, ok := vals[prefix+name]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", prefix, name, err)
		}
		*dst = n
	}
	if v, ok := vals[prefix+"SEED"]; ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sSEED: %w", prefix, err)
		}
		c.Seed = n
	}
	if v, ok := vals[prefix+"SMOOTH_SIGMA"]; ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid %sSMOOTH_SIGMA: %w", prefix, err)
		}
		c.SmoothSigma = f
	}
	if v, ok := vals[prefix+"DISTANCE"]; ok {
		c.Distance = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := vals[prefix+"LOG_LEVEL"]; ok {
		c.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := vals[prefix+"LOG_FORMAT"]; ok {
		c.LogFormat = strings.ToLower(strings.TrimSpace(v))
	}
	return nil
}

// Validate checks ranges; it does not know which distance names exist beyond
// the built-in ones.
func (c Config) Validate() error {
	switch {
	case c.Orientations < 1:
		return fmt.Errorf("orientations must be >= 1, got %d", c.Orientations)
	case c.Radius < 0 || c.TextureRadius < 0:
		return fmt.Errorf("radii must be >= 0, got %d and %d", c.Radius, c.TextureRadius)
	case c.Bins < 1:
		return fmt.Errorf("bins must be >= 1, got %d", c.Bins)
	case c.Textons < 1:
		return fmt.Errorf("textons must be >= 1, got %d", c.Textons)
	case c.Border < 0:
		return fmt.Errorf("border must be >= 0, got %d", c.Border)
	case c.SmoothSigma < 0:
		return fmt.Errorf("smooth sigma must be >= 0, got %g", c.SmoothSigma)
	case c.Workers < 0:
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	switch c.Distance {
	case "chi2", "l1", "l2":
	default:
		return fmt.Errorf("unknown distance %q", c.Distance)
	}
	switch c.LogFormat {
	case "text", "json", "zerolog", "console", "none":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// WorkerCount resolves Workers, substituting GOMAXPROCS for 0.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// NewLogger builds the logger selected by LogFormat and LogLevel.
func (c Config) NewLogger(w io.Writer) (logger.Logger, error) {
	switch c.LogFormat {
	case "none", "":
		return logger.Nop{}, nil
	case "zerolog", "console":
		lvl, err := zerolog.ParseLevel(c.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		if c.LogFormat == "console" {
			return logger.NewConsoleLogger(w, lvl), nil
		}
		return logger.NewZerolog(w, lvl), nil
	case "text", "json":
		lvl, err := logrus.ParseLevel(c.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		return logger.NewLogrusWriter(w, lvl, c.LogFormat == "json"), nil
	}
	return nil, fmt.Errorf("unknown log format %q", c.LogFormat)
}
