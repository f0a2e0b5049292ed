package internal

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/ansuz/internal/models"
)

var segmentRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Record RecordConfig      `yaml:"record"`
	Node   NodeConfig        `yaml:"node"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Wallet WalletConfig      `yaml:"wallet"`
	Cloud  CloudConfig       `yaml:"cloud"`
	Feed   FeedConfig        `yaml:"feed"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Record.Validate(); err != nil {
		return fmt.Errorf("record: %w", err)
	}
	if err := c.Node.Validate(); err != nil {
		return fmt.Errorf("node: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Wallet.Validate(); err != nil {
		return fmt.Errorf("wallet: %w", err)
	}
	return c.Feed.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile receives client logs; the terminal owns stdout. Empty discards.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RecordConfig locates the shared record.
type RecordConfig struct {
	ProgramID string `yaml:"program_id"`
	Key       string `yaml:"key"`
	// CollapseFetchErrors shows a failed fetch as an uninitialized record
	// instead of an unavailable one.
	CollapseFetchErrors bool `yaml:"collapse_fetch_errors"`
}

// Address returns the record address.
func (c *RecordConfig) Address() models.RecordAddress {
	return models.RecordAddress{ProgramID: c.ProgramID, Key: c.Key}
}

// Validate validates the record configuration.
func (c *RecordConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ProgramID, validation.Required, validation.Match(segmentRe)),
		validation.Field(&c.Key, validation.Required, validation.Match(segmentRe)),
	)
}

// NodeConfig tells the client where the record node is.
type NodeConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the node configuration.
func (c *NodeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL, validation.By(httpScheme)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

func httpScheme(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_scheme", "must use http or https")
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// WalletConfig holds the keystore location.
type WalletConfig struct {
	Keystore string `yaml:"keystore"`
}

// Validate validates the wallet configuration.
func (c *WalletConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Keystore, validation.Required),
	)
}

// CloudConfig controls how the word cloud is derived.
type CloudConfig struct {
	// MergeRepeats sums the weights of repeated words into one entry.
	MergeRepeats bool `yaml:"merge_repeats"`
}

// FeedConfig controls the node's change feed.
type FeedConfig struct {
	CloudThrottle time.Duration `yaml:"cloud_throttle"`
}

// Validate validates the feed configuration.
func (c *FeedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CloudThrottle, validation.Min(time.Duration(0))),
	)
}

// DefaultKeystorePath returns ~/.ansuz/keystore.yaml, or a relative path
// when the home directory is unknown.
func DefaultKeystorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ansuz", "keystore.yaml")
	}
	return filepath.Join(home, ".ansuz", "keystore.yaml")
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Record: RecordConfig{
			ProgramID: "ansuz",
			Key:       "word-cloud",
		},
		Node: NodeConfig{
			URL:     "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Wallet: WalletConfig{
			Keystore: DefaultKeystorePath(),
		},
		Feed: FeedConfig{
			CloudThrottle: 2 * time.Second,
		},
	}
}
