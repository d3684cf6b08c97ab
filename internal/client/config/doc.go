// Package config loads runtime configuration for the feed viewer client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address of the message bus
//	-t int      request timeout (seconds)
//	-p int      page size for item listings
//	-d string   path of the local cache database
//
// # JSON schema
//
// The JSON loader uses timex.Duration for the timeout, so values can be
// either strings like "10s" or integer nanoseconds:
//
//	{
//	  "nats_url": "nats://127.0.0.1:4222",
//	  "request_timeout": "10s",
//	  "page_size": 25,
//	  "cache_path": "feedkeeper.db",
//	  "master_public_key_hex": "f0e1d2...",
//	  "filehost_bucket": "feed-files",
//	  "s3_base_endpoint": "http://127.0.0.1:9000"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
