package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/keyescrow/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r string   repositories root directory
//	-w string   work directory
//	-o string   ciphertext store ("local" or "s3")
//	-k string   local ciphertext store directory
//	-x int      packing/encryption timeout, seconds
//	-m int      largest archive to encrypt, bytes
//	-l string   log level
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.RepositoriesRoot, "r", config.RepositoriesRoot, "repositories root directory")
	fs.StringVar(&config.WorkDir, "w", config.WorkDir, "work directory")
	fs.StringVar(&config.CipherStore, "o", config.CipherStore, "ciphertext store: local or s3")
	fs.StringVar(&config.CipherRoot, "k", config.CipherRoot, "local ciphertext store directory")

	workTimeout := fs.Int("x", int(config.WorkTimeout.Seconds()), "work_timeout (in seconds)")

	fs.Int64Var(&config.MaxArchiveSize, "m", config.MaxArchiveSize, "max archive size (in bytes)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level: debug, info, warn or error")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := flagx.Parse(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.WorkTimeout = time.Duration(*workTimeout) * time.Second
}
