package config

import "time"

// Config holds runtime settings for the feed viewer client.
//
// Fields:
//   - NatsURL: address of the message bus.
//   - RequestTimeout: per-request deadline on bus exchanges.
//   - PageSize: items requested per page.
//   - CachePath: path of the local SQLite cache database.
//   - MasterPublicKeyHex: hex-encoded X25519 public key of the key master,
//     used when generating secrets for new feeds.
//   - FilehostBucket/S3*: location and credentials of the file host's
//     object store (MinIO convention).
type Config struct {
	NatsURL            string
	RequestTimeout     time.Duration
	PageSize           int
	CachePath          string
	MasterPublicKeyHex string
	FilehostBucket     string
	S3Region           string
	S3BaseEndpoint     string
	S3RootUser         string
	S3RootPassword     string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.NatsURL = "nats://127.0.0.1:4222"
	c.RequestTimeout = 10 * time.Second
	c.PageSize = 25
	c.CachePath = "feedkeeper.db"
	c.FilehostBucket = "feed-files"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
