package config

import (
	"flag"
	"os"
	"time"

	"github.com/aivanovs/dataroom/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-i string   Google OAuth client id
//	-k string   Google OAuth client secret
//	-r string   Google OAuth redirect URL
//	-w int      Drive API request timeout, seconds
//	-o string   storage backend ("disk" or "s3")
//	-f string   disk storage root directory
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-m int      maximum Drive ids per import request
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers and converted to time.Duration.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-t", "-i", "-k", "-r", "-w", "-o", "-f",
		"-u", "-p", "-b", "-g", "-e", "-m",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.GoogleClientID, "i", config.GoogleClientID, "Google OAuth client id")
	fs.StringVar(&config.GoogleClientSecret, "k", config.GoogleClientSecret, "Google OAuth client secret")
	fs.StringVar(&config.GoogleRedirectURL, "r", config.GoogleRedirectURL, "Google OAuth redirect URL")

	driveRequestTimeout := fs.Int("w", int(config.DriveRequestTimeout.Seconds()), "drive_request_timeout (in seconds)")

	fs.StringVar(&config.StorageBackend, "o", config.StorageBackend, "storage backend (disk or s3)")
	fs.StringVar(&config.StoragePath, "f", config.StoragePath, "disk storage root directory")

	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.IntVar(&config.ImportMaxBatch, "m", config.ImportMaxBatch, "maximum drive ids per import request")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.DriveRequestTimeout = time.Duration(*driveRequestTimeout) * time.Second
}
