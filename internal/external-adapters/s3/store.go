// Package s3 implements an artifact store backed by an S3-compatible bucket.
package s3

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/zip"

	"github.com/jenkins-infra/incrementals-publisher/internal/domain/entities"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces"
	"github.com/jenkins-infra/incrementals-publisher/internal/domain/interfaces/gateways"
)

// Options configures the bucket the store publishes into
type Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	Prefix          string
	PublicURL       string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// objectAPI is the subset of the S3 client the store needs
type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store implements ArtifactStore by exploding archives into a bucket
type Store struct {
	api       objectAPI
	bucket    string
	prefix    string
	publicURL string
	logger    interfaces.Logger
}

// NewClient builds an S3 client from options. Retries are disabled; the caller owns retry policy.
func NewClient(ctx context.Context, opts Options, httpClient *http.Client) (*s3.Client, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if httpClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(httpClient))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// NewStore creates a store publishing into opts.Bucket using api
func NewStore(api objectAPI, opts Options, logger interfaces.Logger) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("S3 bucket is required")
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}

	prefix := strings.Trim(opts.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = strings.TrimSuffix(opts.Endpoint, "/") + "/" + opts.Bucket + "/"
	}
	if !strings.HasSuffix(publicURL, "/") {
		publicURL += "/"
	}

	return &Store{api: api, bucket: opts.Bucket, prefix: prefix, publicURL: publicURL, logger: logger}, nil
}

// Name identifies the store in result bodies
func (s *Store) Name() string {
	return "S3"
}

func (s *Store) key(path string) string {
	return s.prefix + strings.TrimPrefix(path, "/")
}

// URL returns the public location of a repository path
func (s *Store) URL(path string) string {
	return s.publicURL + s.key(path)
}

// Exists reports whether the object is present. Any HTTP answer other than success means absent.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err == nil {
		return true, nil
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return false, nil
	}
	return false, fmt.Errorf("failed to probe %s: %w", s.key(path), err)
}

// Publish uploads every archive entry, descriptors last so the idempotency marker appears only when the rest is in place
func (s *Store) Publish(ctx context.Context, archive *gateways.DownloadedArchive) (*gateways.PublishResponse, error) {
	zr, err := zip.OpenReader(archive.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer zr.Close()

	var files, descriptors []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(f.Name, entities.DescriptorSuffix) {
			descriptors = append(descriptors, f)
		} else {
			files = append(files, f)
		}
	}

	scratch := filepath.Dir(archive.Path)
	for _, f := range append(files, descriptors...) {
		if err := s.putEntry(ctx, f, scratch); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Uploaded archive entries", interfaces.F("bucket", s.bucket), interfaces.F("objects", len(files)+len(descriptors)))

	return &gateways.PublishResponse{StatusCode: http.StatusOK, StatusText: http.StatusText(http.StatusOK)}, nil
}

// putEntry spools one entry to a seekable scratch file so the SDK can sign and checksum it
func (s *Store) putEntry(ctx context.Context, f *zip.File, scratch string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	//nolint:errcheck // Defer close on entry reader
	defer rc.Close()

	tmp, err := os.CreateTemp(scratch, "entry-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), rc)
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind %s: %w", f.Name, err)
	}

	checksum := base64.StdEncoding.EncodeToString(h.Sum(nil))
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(s.key(f.Name)),
		Body:              tmp,
		ContentLength:     aws.Int64(size),
		ChecksumAlgorithm: s3types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    aws.String(checksum),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", f.Name, err)
	}
	return nil
}
