package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/computehome/launcher/internal/connection"
	"github.com/computehome/launcher/internal/logger"
)

const (
	// DefaultURL is the launcher page used when LAUNCHER_URL is unset.
	DefaultURL = "http://localhost:8080/app"
	apiPath    = "/api"
)

var ErrUnsupportedScheme = errors.New("unsupported scheme")

// ClientConfig holds everything needed to build a client.
type ClientConfig struct {
	// PageURL is the launcher page the client stands in for. The websocket
	// endpoint mirrors its scheme.
	PageURL   string
	Reconnect connection.ReconnectPolicy
	// Dev switches logging to the console writer at debug level.
	Dev bool
}

// FromEnv reads LAUNCHER_URL, LAUNCHER_RECONNECT, LAUNCHER_RECONNECT_MAX and
// LAUNCHER_DEV.
func FromEnv() ClientConfig {
	cfg := ClientConfig{
		PageURL: DefaultURL,
		Dev:     envBool("LAUNCHER_DEV"),
	}
	if u := strings.TrimSpace(os.Getenv("LAUNCHER_URL")); u != "" {
		cfg.PageURL = u
	}
	if envBool("LAUNCHER_RECONNECT") {
		cfg.Reconnect = connection.DefaultReconnectPolicy()
		if limit, err := time.ParseDuration(os.Getenv("LAUNCHER_RECONNECT_MAX")); err == nil && limit > 0 {
			cfg.Reconnect.Max = limit
		}
	}
	return cfg
}

// LogLevel is debug in dev mode and info otherwise, unless LAUNCHER_DEBUG
// says otherwise.
func (c ClientConfig) LogLevel() logger.LogLevel {
	return logger.GetLogLevelFromEnv(c.Dev)
}

// Endpoint returns the websocket URL for the configured page.
func (c ClientConfig) Endpoint() (string, error) {
	return EndpointFor(c.PageURL)
}

// EndpointFor maps a page URL to the /api websocket on the same host and
// port: http pages use ws, https pages use wss. ws and wss URLs are accepted
// as they are apart from the path.
func EndpointFor(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", pageURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%q has no host", pageURL)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%q: %w %q", pageURL, ErrUnsupportedScheme, u.Scheme)
	}

	endpoint := url.URL{Scheme: u.Scheme, Host: u.Host, Path: apiPath}
	return endpoint.String(), nil
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}
