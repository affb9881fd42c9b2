package server

import (
	"time"

	"github.com/keldara/vaultcraft/internal/config"
)

// Config is everything a vaultd process needs beyond the shared
// internal/config option set: where to listen, which storage backend to
// use, and the JWT issuer/TTL for minted bearer tokens.
type Config struct {
	Shared config.Config

	ListenAddr string

	// StorageBackend selects FileSrpStore/FileVaultStore ("file") or
	// MongoSrpStore/MongoVaultStore ("mongo").
	StorageBackend string
	DataDir        string // used when StorageBackend == "file"
	MongoURI       string // used when StorageBackend == "mongo"
	MongoDB        string

	JWTIssuer string
	TokenTTL  time.Duration
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8443"
	}
	if c.StorageBackend == "" {
		c.StorageBackend = "file"
	}
	if c.DataDir == "" {
		c.DataDir = "./vaultd-data"
	}
	if c.MongoDB == "" {
		c.MongoDB = "vaultcraft"
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "vaultcraft"
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = 15 * time.Minute
	}
}
