package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jimezsa/jobscrape/internal/network"
	"github.com/jimezsa/jobscrape/internal/scraper"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

const (
	DirName         = "jobscrape"
	ConfigFileName  = "config.json"
	ProxiesFileName = "proxies.txt"
)

// DelayRange is a pacing interval in seconds.
type DelayRange struct {
	MinSeconds float64 `json:"min_seconds"`
	MaxSeconds float64 `json:"max_seconds"`
}

func (d DelayRange) Interval() network.Interval {
	return network.Interval{
		Min: secondsToDuration(d.MinSeconds),
		Max: secondsToDuration(d.MaxSeconds),
	}
}

// Config contains search defaults and request pacing settings.
type Config struct {
	DefaultLocation   string     `json:"default_location"`
	BaseURL           string     `json:"base_url"`
	OutputDir         string     `json:"output_dir"`
	SearchDelay       DelayRange `json:"search_delay"`
	DetailDelay       DelayRange `json:"detail_delay"`
	MaxRequestsPerSec float64    `json:"max_requests_per_second"`
	TimeoutSeconds    int        `json:"timeout_seconds"`
	ProxyBanMinutes   int        `json:"proxy_ban_minutes"`
	UserAgents        []string   `json:"user_agents"`
}

func DefaultConfig() Config {
	return Config{
		DefaultLocation:   envString("JOBSCRAPE_DEFAULT_LOCATION", ""),
		BaseURL:           envString("JOBSCRAPE_BASE_URL", scraper.LinkedInBaseURL),
		OutputDir:         ".",
		SearchDelay:       DelayRange{MinSeconds: 2, MaxSeconds: 5},
		DetailDelay:       DelayRange{MinSeconds: 2, MaxSeconds: 4},
		MaxRequestsPerSec: 1,
		TimeoutSeconds:    envInt("JOBSCRAPE_TIMEOUT", int(network.DefaultTimeout.Seconds())),
		ProxyBanMinutes:   10,
		UserAgents:        append([]string{}, network.DefaultUserAgents...),
	}
}

// Validate rejects settings the pacer or transport cannot honour.
func (c Config) Validate() error {
	if err := c.SearchDelay.Interval().Validate(); err != nil {
		return fmt.Errorf("search_delay: %w", err)
	}
	if err := c.DetailDelay.Interval().Validate(); err != nil {
		return fmt.Errorf("detail_delay: %w", err)
	}
	if c.MaxRequestsPerSec < 0 {
		return fmt.Errorf("max_requests_per_second must not be negative")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}
	return nil
}

func (c Config) Intervals() map[network.RequestKind]network.Interval {
	return map[network.RequestKind]network.Interval{
		network.KindSearch: c.SearchDelay.Interval(),
		network.KindDetail: c.DetailDelay.Interval(),
	}
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) ProxyBanDuration() time.Duration {
	return time.Duration(c.ProxyBanMinutes) * time.Minute
}

func ConfigDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("JOBSCRAPE_CONFIG_DIR")); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, DirName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

func ProxiesPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ProxiesFileName), nil
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults. A missing or empty file yields the
// defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}

	if err := json5.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = append([]string{}, network.DefaultUserAgents...)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Init writes default config.json and proxies.txt if they don't already exist.
func Init() ([]string, error) {
	var created []string

	dir, err := ConfigDir()
	if err != nil {
		return created, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return created, err
	}

	configPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := writeConfig(configPath, DefaultConfig()); err != nil {
			return created, err
		}
		created = append(created, configPath)
	}

	proxiesPath := filepath.Join(dir, ProxiesFileName)
	if _, err := os.Stat(proxiesPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(proxiesPath, []byte("# one proxy URL per line\n"), 0o644); err != nil {
			return created, err
		}
		created = append(created, proxiesPath)
	}

	return created, nil
}

func writeConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// LoadProxies resolves proxies from the flag, JOBSCRAPE_PROXIES, or
// proxies.txt, in that order.
func LoadProxies(flagValue string) ([]string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return splitCSV(flagValue), nil
	}

	if env := strings.TrimSpace(os.Getenv("JOBSCRAPE_PROXIES")); env != "" {
		return splitCSV(env), nil
	}

	path, err := ProxiesPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var proxies []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
	}
	return proxies, nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func envString(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
