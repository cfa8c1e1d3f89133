package update

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// NoVersionCode means no version code was configured.
	NoVersionCode int64 = -1

	// DefaultMaxRetries is the default retry budget for a session.
	DefaultMaxRetries = 3

	// DefaultNotificationID is the notification id used when none is configured.
	DefaultNotificationID = 0x66

	DefaultChannelID   = "appupdater_channel"
	DefaultChannelName = "AppUpdater"

	// ArtifactExtension is the extension of downloaded update packages.
	ArtifactExtension = ".apk"

	// MaxURLFilenameLength bounds URL segments used as file names.
	MaxURLFilenameLength = 64

	// FileProviderSuffix is appended to the host package name to build
	// the default install authority.
	FileProviderSuffix = ".fileProvider"
)

// Config describes a single update session.
type Config struct {
	URL string `json:"url" yaml:"url"`

	// Path is the target directory. Deprecated: prefer the cache
	// directory provider; kept for callers that pin a location.
	Path     string            `json:"path,omitempty" yaml:"path,omitempty"`
	Filename string            `json:"filename,omitempty" yaml:"filename,omitempty"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	MD5         string `json:"md5,omitempty" yaml:"md5,omitempty"`
	VersionCode int64  `json:"versionCode" yaml:"versionCode"`

	RetryEnabled     bool `json:"retryEnabled" yaml:"retryEnabled"`
	MaxRetries       int  `json:"maxRetries" yaml:"maxRetries"`
	DeleteCancelFile bool `json:"deleteCancelFile" yaml:"deleteCancelFile"`
	InstallApk       bool `json:"installApk" yaml:"installApk"`

	// Authority is passed to the install launcher. Empty means the host
	// package name plus FileProviderSuffix.
	Authority string `json:"authority,omitempty" yaml:"authority,omitempty"`

	ShowNotification      bool   `json:"showNotification" yaml:"showNotification"`
	ShowPercentage        bool   `json:"showPercentage" yaml:"showPercentage"`
	NotificationID        int    `json:"notificationId" yaml:"notificationId"`
	ChannelID             string `json:"channelId" yaml:"channelId"`
	ChannelName           string `json:"channelName" yaml:"channelName"`
	NotificationIcon      string `json:"notificationIcon,omitempty" yaml:"notificationIcon,omitempty"`
	Vibrate               bool   `json:"vibrate" yaml:"vibrate"`
	Sound                 bool   `json:"sound" yaml:"sound"`
	SupportCancelDownload bool   `json:"supportCancelDownload" yaml:"supportCancelDownload"`
}

// NewConfig creates a config for url with default settings.
func NewConfig(url string) *Config {
	return &Config{
		URL:              url,
		VersionCode:      NoVersionCode,
		RetryEnabled:     true,
		MaxRetries:       DefaultMaxRetries,
		DeleteCancelFile: true,
		InstallApk:       true,
		ShowNotification: true,
		ShowPercentage:   true,
		NotificationID:   DefaultNotificationID,
		ChannelID:        DefaultChannelID,
		ChannelName:      DefaultChannelName,
	}
}

func (c *Config) WithPath(path string) *Config {
	c.Path = path
	return c
}

func (c *Config) WithFilename(filename string) *Config {
	c.Filename = filename
	return c
}

// WithHeader adds a request header sent by the transport.
func (c *Config) WithHeader(key, value string) *Config {
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	c.Headers[key] = value
	return c
}

func (c *Config) WithMD5(md5 string) *Config {
	c.MD5 = md5
	return c
}

func (c *Config) WithVersionCode(versionCode int64) *Config {
	c.VersionCode = versionCode
	return c
}

// WithRetry sets whether failures may be retried and the retry budget.
func (c *Config) WithRetry(enabled bool, maxRetries int) *Config {
	c.RetryEnabled = enabled
	c.MaxRetries = maxRetries
	return c
}

func (c *Config) WithDeleteCancelFile(del bool) *Config {
	c.DeleteCancelFile = del
	return c
}

func (c *Config) WithInstall(install bool) *Config {
	c.InstallApk = install
	return c
}

func (c *Config) WithAuthority(authority string) *Config {
	c.Authority = authority
	return c
}

// WithNotification toggles notifications and the percentage in their content.
func (c *Config) WithNotification(show, showPercentage bool) *Config {
	c.ShowNotification = show
	c.ShowPercentage = showPercentage
	return c
}

func (c *Config) WithChannel(id, name string) *Config {
	c.ChannelID = id
	c.ChannelName = name
	return c
}

func (c *Config) WithCancelSupport(supported bool) *Config {
	c.SupportCancelDownload = supported
	return c
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return &ConfigError{Field: "url", Err: ErrEmptyURL}
	}
	if c.MaxRetries < 0 {
		return &ConfigError{Field: "maxRetries", Err: ErrNegativeRetries}
	}
	if c.Filename != "" && !isBaseName(c.Filename) {
		return &ConfigError{Field: "filename", Err: ErrInvalidFilename}
	}
	return nil
}

// isBaseName reports whether name stays inside the directory it is joined to.
func isBaseName(name string) bool {
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return false
	}
	return filepath.Base(name) == name
}

// HasMD5 reports whether cache validation uses the MD5 digest.
func (c *Config) HasMD5() bool {
	return c.MD5 != ""
}

// HasVersionCode reports whether a version code was configured.
func (c *Config) HasVersionCode() bool {
	return c.VersionCode > NoVersionCode
}

// RetryAllowed reports whether a failure after retryCount prior attempts
// may be retried.
func (c *Config) RetryAllowed(retryCount int) bool {
	return c.RetryEnabled && retryCount < c.MaxRetries
}

// Clone returns a deep copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Headers != nil {
		clone.Headers = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			clone.Headers[k] = v
		}
	}
	return &clone
}

// Marshal encodes the config for transfer to another process.
func (c *Config) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// DecodeConfig decodes a JSON config. Fields absent from data keep their
// defaults.
func DecodeConfig(data []byte) (*Config, error) {
	cfg := NewConfig("")
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// DecodeRemoteConfig decodes a config received from a remote caller.
// Remote sessions always write into the cache dir, so Path is dropped.
func DecodeRemoteConfig(data []byte) (*Config, error) {
	cfg, err := DecodeConfig(data)
	if err != nil {
		return nil, err
	}
	cfg.Path = ""
	return cfg, nil
}

// LoadConfigFile reads a YAML or JSON config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return DecodeConfig(data)
	}

	cfg := NewConfig("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
