// Package config holds the static configuration of the dashboard and its
// TOML file format.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"

	"github.com/joshdurbin/strava-dashboard/internal/cache"
	"github.com/joshdurbin/strava-dashboard/internal/logging"
	"github.com/joshdurbin/strava-dashboard/internal/stats"
)

// Cache backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the decoded configuration file merged over Default()
type Config struct {
	FirstDay          string        `toml:"first_day"`
	ReferenceTimezone string        `toml:"reference_timezone"`
	PageSize          int           `toml:"page_size"`
	ActivitiesTTL     time.Duration `toml:"activities_ttl"`
	StatsTTL          time.Duration `toml:"stats_ttl"`
	CacheBackend      string        `toml:"cache_backend"`
	MemoryCacheMB     int           `toml:"memory_cache_mb"`
	RedisAddr         string        `toml:"redis_addr"`
	RedisPassword     string        `toml:"redis_password"`
	RedisDB           int           `toml:"redis_db"`
	ListenAddr        string        `toml:"listen_addr"`
	LogFormat         string        `toml:"log_format"`
	Locale            LocaleConfig  `toml:"locale"`
}

// LocaleConfig holds the translation tables shown on the dashboard
type LocaleConfig struct {
	WeekLabel  string            `toml:"week_label"`
	Weekdays   map[string]string `toml:"weekdays"`
	SportTypes map[string]string `toml:"sport_types"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		FirstDay:          "2025-01-01",
		ReferenceTimezone: "America/Sao_Paulo",
		PageSize:          50,
		ActivitiesTTL:     time.Hour,
		StatsTTL:          30 * time.Minute,
		CacheBackend:      BackendMemory,
		MemoryCacheMB:     64,
		RedisAddr:         "localhost:6379",
		ListenAddr:        ":8080",
		LogFormat:         string(logging.FormatConsole),
		Locale: LocaleConfig{
			WeekLabel: "Semana %d",
			Weekdays: map[string]string{
				"Monday":    "Segunda-feira",
				"Tuesday":   "Terça-feira",
				"Wednesday": "Quarta-feira",
				"Thursday":  "Quinta-feira",
				"Friday":    "Sexta-feira",
				"Saturday":  "Sábado",
				"Sunday":    "Domingo",
			},
			SportTypes: map[string]string{
				"Run":                           "Corrida",
				"TrailRun":                      "Corrida em trilha",
				"VirtualRun":                    "Corrida virtual",
				"Walk":                          "Caminhada",
				"Hike":                          "Trilha",
				"Ride":                          "Ciclismo",
				"MountainBikeRide":              "Mountain bike",
				"GravelRide":                    "Gravel",
				"VirtualRide":                   "Ciclismo virtual",
				"EBikeRide":                     "Bicicleta elétrica",
				"Swim":                          "Natação",
				"WeightTraining":                "Musculação",
				"Workout":                       "Treino",
				"Yoga":                          "Yoga",
				"Crossfit":                      "Crossfit",
				"HighIntensityIntervalTraining": "HIIT",
				"Rowing":                        "Remo",
				"StandUpPaddling":               "Stand up paddle",
				"Surfing":                       "Surfe",
				"Soccer":                        "Futebol",
				"Tennis":                        "Tênis",
				"Elliptical":                    "Elíptico",
				"StairStepper":                  "Escada",
			},
		},
	}
}

// Load decodes the TOML file at path over Default(). A missing file yields
// the defaults. Keys not present in the file keep their default values;
// translation tables are merged entry by entry.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			logging.Debug("config file not found, using defaults", "path", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to stat config: %w", err)
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		logging.Warn("ignoring unknown config keys", "keys", strings.Join(keys, ", "))
	}

	return cfg, nil
}

// Validate reports every invalid setting at once
func (c Config) Validate() error {
	var errs []error

	if _, err := c.Cutoff(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", c.PageSize))
	}
	if c.ActivitiesTTL <= 0 {
		errs = append(errs, fmt.Errorf("activities_ttl must be positive, got %s", c.ActivitiesTTL))
	}
	if c.StatsTTL <= 0 {
		errs = append(errs, fmt.Errorf("stats_ttl must be positive, got %s", c.StatsTTL))
	}

	switch c.CacheBackend {
	case BackendMemory:
		if c.MemoryCacheMB < 1 {
			errs = append(errs, fmt.Errorf("memory_cache_mb must be positive, got %d", c.MemoryCacheMB))
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis_addr is required for the redis cache backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown cache_backend %q (want %s or %s)", c.CacheBackend, BackendMemory, BackendRedis))
	}

	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	if c.Locale.WeekLabel != "" && !strings.Contains(c.Locale.WeekLabel, "%d") {
		errs = append(errs, fmt.Errorf("locale.week_label %q must contain %%d", c.Locale.WeekLabel))
	}

	return errors.Join(errs...)
}

// Cutoff parses first_day. Activities at or before it are excluded.
func (c Config) Cutoff() (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, c.FirstDay); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid first_day %q (want YYYY-MM-DD or RFC3339)", c.FirstDay)
}

// Location loads the reference timezone
func (c Config) Location() (*time.Location, error) {
	if c.ReferenceTimezone == "" {
		return nil, errors.New("reference_timezone is required")
	}
	loc, err := time.LoadLocation(c.ReferenceTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid reference_timezone %q: %w", c.ReferenceTimezone, err)
	}
	return loc, nil
}

// StatsLocale converts the translation tables for the calculators
func (c Config) StatsLocale() stats.Locale {
	return stats.Locale{
		Weekdays:   c.Locale.Weekdays,
		SportTypes: c.Locale.SportTypes,
		WeekLabel:  c.Locale.WeekLabel,
	}
}

// CacheTTLs returns the lifetimes of the two cache classes
func (c Config) CacheTTLs() cache.TTLs {
	return cache.TTLs{
		Activities: c.ActivitiesTTL,
		Stats:      c.StatsTTL,
	}
}
