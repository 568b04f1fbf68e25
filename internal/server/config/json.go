package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/keyescrow/internal/flagx"
	"github.com/dmitrijs2005/keyescrow/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "90s" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	RepositoriesRoot            string         `json:"repositories_root"`
	WorkDir                     string         `json:"work_dir"`
	CipherStore                 string         `json:"cipher_store"`
	CipherRoot                  string         `json:"cipher_root"`
	WorkTimeout                 timex.Duration `json:"work_timeout"`
	MaxArchiveSize              int64          `json:"max_archive_size"`
	LogLevel                    string         `json:"log_level"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
}

// parseJson loads the file named by -c/-config (if any) into config.
// Keys missing from the file keep their current values. An unreadable or
// malformed file panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	setString(&config.RepositoriesRoot, c.RepositoriesRoot)
	setString(&config.WorkDir, c.WorkDir)
	setString(&config.CipherStore, c.CipherStore)
	setString(&config.CipherRoot, c.CipherRoot)
	if c.WorkTimeout.Duration > 0 {
		config.WorkTimeout = c.WorkTimeout.Duration
	}
	if c.MaxArchiveSize > 0 {
		config.MaxArchiveSize = c.MaxArchiveSize
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
