// Package cloudcfg syncs the lightweight AppConfig document with an
// S3-compatible bucket. It is the only cloud touchpoint of the
// application: journal data and chart assets never leave the local
// storage roots, only the vocabulary and naming configuration does.
package cloudcfg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chartlog/chartlog"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNotFound reports that the bucket holds no config document yet.
var ErrNotFound = errors.New("no remote config")

const configObject = "config.json"

// Options configure the remote endpoint. All fields are required
// except Secure, which defaults to TLS on.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Insecure  bool
}

// Environment variables read by FromEnv.
const (
	EnvEndpoint  = "CHARTLOG_S3_ENDPOINT"
	EnvAccessKey = "CHARTLOG_S3_ACCESS_KEY"
	EnvSecretKey = "CHARTLOG_S3_SECRET_KEY"
	EnvBucket    = "CHARTLOG_S3_BUCKET"
)

// FromEnv builds Options from the environment. It fails when any of
// the required variables is unset.
func FromEnv() (Options, error) {
	opts := Options{
		Endpoint:  os.Getenv(EnvEndpoint),
		AccessKey: os.Getenv(EnvAccessKey),
		SecretKey: os.Getenv(EnvSecretKey),
		Bucket:    os.Getenv(EnvBucket),
	}
	for _, v := range []struct{ name, value string }{
		{EnvEndpoint, opts.Endpoint},
		{EnvAccessKey, opts.AccessKey},
		{EnvSecretKey, opts.SecretKey},
		{EnvBucket, opts.Bucket},
	} {
		if v.value == "" {
			return Options{}, fmt.Errorf("cloud sync is not configured: %s is unset", v.name)
		}
	}
	return opts, nil
}

// Client pushes and pulls the config document.
type Client struct {
	mc     *minio.Client
	bucket string
}

// New connects a client to the configured endpoint.
func New(opts Options) (*Client, error) {
	mc, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: !opts.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %q: %w", opts.Endpoint, err)
	}
	return &Client{mc: mc, bucket: opts.Bucket}, nil
}

// Push uploads the configuration, replacing the remote copy.
func (c *Client) Push(ctx context.Context, cfg chartlog.AppConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = c.mc.PutObject(ctx, c.bucket, configObject, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("upload config: %w", err)
	}
	return nil
}

// Pull downloads the remote configuration. A bucket without a config
// document reports ErrNotFound.
func (c *Client) Pull(ctx context.Context) (chartlog.AppConfig, error) {
	obj, err := c.mc.GetObject(ctx, c.bucket, configObject, minio.GetObjectOptions{})
	if err != nil {
		return chartlog.AppConfig{}, fmt.Errorf("download config: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return chartlog.AppConfig{}, ErrNotFound
		}
		return chartlog.AppConfig{}, fmt.Errorf("download config: %w", err)
	}
	var cfg chartlog.AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return chartlog.AppConfig{}, fmt.Errorf("remote config is not valid JSON: %w", err)
	}
	return cfg, nil
}
