package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Addr                 string
	API                  API
	Push                 Push
	Redis                Redis
	Screens              []Screen
	BuildYourOwnCategory string
	Log                  Log
}

// API configures the catalog client.
type API struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Push configures the websocket notification channel.
type Push struct {
	URL          string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Redis configures the optional pub/sub push transport. An empty URL disables
// it.
type Redis struct {
	URL          string
	Channel      string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Screen binds a display screen to the category ids it shows.
type Screen struct {
	Name        string
	Number      int
	CategoryIDs []int64
}

type Log struct {
	Format string
	Level  string
}

const (
	defaultAddr        = ":8090"
	defaultAPIBaseURL  = "http://localhost:8082"
	defaultScreens     = "screen1=1,2;screen2=3,6,7;screen3=8"
	defaultBYOCategory = "Componi-Panino"
	defaultChannel     = "menu-events"
)

// Load seeds the environment from envFile when it exists and then reads it.
// Variables already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv()
}

// FromEnv builds the config from MENUBOARD_* environment variables.
func FromEnv() (Config, error) {
	var errs []error

	cfg := Config{
		Addr: getEnv("MENUBOARD_ADDR", defaultAddr),
		API: API{
			BaseURL:  strings.TrimRight(getEnv("MENUBOARD_API_BASE_URL", defaultAPIBaseURL), "/"),
			Username: os.Getenv("MENUBOARD_API_USERNAME"),
			Password: os.Getenv("MENUBOARD_API_PASSWORD"),
			Timeout:  getDuration("MENUBOARD_API_TIMEOUT", 10*time.Second, &errs),
		},
		Push: Push{
			URL:          os.Getenv("MENUBOARD_PUSH_URL"),
			ReconnectMin: getDuration("MENUBOARD_PUSH_RECONNECT_MIN", time.Second, &errs),
			ReconnectMax: getDuration("MENUBOARD_PUSH_RECONNECT_MAX", 30*time.Second, &errs),
		},
		Redis: Redis{
			URL:          os.Getenv("MENUBOARD_REDIS_URL"),
			Channel:      getEnv("MENUBOARD_REDIS_CHANNEL", defaultChannel),
			PoolSize:     getInt("MENUBOARD_REDIS_POOL_SIZE", 10, &errs),
			DialTimeout:  getDuration("MENUBOARD_REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  getDuration("MENUBOARD_REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: getDuration("MENUBOARD_REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
		},
		BuildYourOwnCategory: getEnv("MENUBOARD_BUILD_YOUR_OWN_CATEGORY", defaultBYOCategory),
		Log: Log{
			Format: getEnv("MENUBOARD_LOG_FORMAT", "json"),
			Level:  getEnv("MENUBOARD_LOG_LEVEL", "info"),
		},
	}

	if cfg.Push.URL == "" {
		pushURL, err := DefaultPushURL(cfg.API.BaseURL)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.Push.URL = pushURL
	}
	if cfg.Push.ReconnectMin > cfg.Push.ReconnectMax {
		errs = append(errs, fmt.Errorf("MENUBOARD_PUSH_RECONNECT_MIN (%s) exceeds MENUBOARD_PUSH_RECONNECT_MAX (%s)",
			cfg.Push.ReconnectMin, cfg.Push.ReconnectMax))
	}

	screens, err := ParseScreens(getEnv("MENUBOARD_SCREENS", defaultScreens))
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Screens = screens

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultPushURL derives the websocket endpoint from the API base URL:
// http://host:port becomes ws://host:port/ws, https becomes wss.
func DefaultPushURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse API base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("API base URL %q must be http or https", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// ParseScreens parses "name=id,id;name=id". A screen's number (used for its
// image keys) is taken from the trailing digits of its name, or its position.
func ParseScreens(raw string) ([]Screen, error) {
	var screens []Screen
	seen := make(map[string]struct{})

	for i, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, list, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("screen entry %q: expected name=ids", entry)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("screen %q configured twice", name)
		}
		seen[name] = struct{}{}

		var ids []int64
		for _, raw := range strings.Split(list, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("screen %q: invalid category id %q", name, raw)
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("screen %q has no category ids", name)
		}

		screens = append(screens, Screen{Name: name, Number: screenNumber(name, i+1), CategoryIDs: ids})
	}
	if len(screens) == 0 {
		return nil, errors.New("no screens configured")
	}
	return screens, nil
}

func screenNumber(name string, fallback int) int {
	end := len(name)
	start := end
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	if start == end {
		return fallback
	}
	n, err := strconv.Atoi(name[start:end])
	if err != nil {
		return fallback
	}
	return n
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}

func getInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}
