// Package config builds the explicit run configuration from viper so that
// nothing below the command layer reads the environment directly.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultAPIURL      = "https://api.vulnmap.khulnasoft.com/v1"
	DefaultConcurrency = 15
	DefaultRetries     = 5
	DefaultTimeout     = 60 * time.Second
	DefaultRPS         = 10
)

// Keys as they appear in the config file. Env variables are bound to the
// same keys in Bind.
const (
	KeyToken       = "token"
	KeyAPI         = "api"
	KeyRESTAPI     = "rest_api"
	KeyLogPath     = "log_path"
	KeyImportPath  = "import_path"
	KeyConcurrency = "concurrency"
	KeyRetries     = "http.retries"
	KeyTimeout     = "http.timeout"
	KeyRPS         = "http.rps"
	KeyProxy       = "http.proxy"
)

var ErrMissingToken = errors.New("Please set the VULNMAP_TOKEN e.g. export VULNMAP_TOKEN='*****'")

type Config struct {
	Token       string
	APIURL      string
	RESTURL     string
	LogPath     string
	ImportPath  string
	Concurrency int
	Retries     int
	Timeout     time.Duration
	RPS         float64
	Proxy       string
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyToken, "")
	v.SetDefault(KeyAPI, DefaultAPIURL)
	v.SetDefault(KeyRESTAPI, "")
	v.SetDefault(KeyLogPath, "")
	v.SetDefault(KeyImportPath, "")
	v.SetDefault(KeyConcurrency, DefaultConcurrency)
	v.SetDefault(KeyRetries, DefaultRetries)
	v.SetDefault(KeyTimeout, DefaultTimeout)
	v.SetDefault(KeyRPS, DefaultRPS)
	v.SetDefault(KeyProxy, "")
}

// Bind maps the VULNMAP_* environment variables onto config keys.
func Bind(v *viper.Viper) error {
	binds := map[string]string{
		KeyToken:      "VULNMAP_TOKEN",
		KeyAPI:        "VULNMAP_API",
		KeyRESTAPI:    "VULNMAP_REST_API",
		KeyLogPath:    "VULNMAP_LOG_PATH",
		KeyImportPath: "VULNMAP_IMPORT_PATH",
	}
	for key, env := range binds {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Load reads every key once and returns the resulting Config.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Token:       strings.TrimSpace(v.GetString(KeyToken)),
		APIURL:      strings.TrimRight(v.GetString(KeyAPI), "/"),
		RESTURL:     strings.TrimRight(v.GetString(KeyRESTAPI), "/"),
		LogPath:     v.GetString(KeyLogPath),
		ImportPath:  v.GetString(KeyImportPath),
		Concurrency: v.GetInt(KeyConcurrency),
		Retries:     v.GetInt(KeyRetries),
		Timeout:     v.GetDuration(KeyTimeout),
		RPS:         v.GetFloat64(KeyRPS),
		Proxy:       v.GetString(KeyProxy),
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.RESTURL == "" {
		cfg.RESTURL = RESTURLFromAPI(cfg.APIURL)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg, nil
}

// RequireToken fails when no API token has been configured.
func (c *Config) RequireToken() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// RESTURLFromAPI derives the REST base from a v1 base URL.
// https://api.example.com/v1 becomes https://api.example.com/rest.
func RESTURLFromAPI(api string) string {
	api = strings.TrimRight(api, "/")
	if strings.HasSuffix(api, "/v1") {
		return strings.TrimSuffix(api, "/v1") + "/rest"
	}
	return api + "/rest"
}
