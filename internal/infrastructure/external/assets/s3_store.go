// Package assets resolves uploaded evidence files to URLs.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
	"github.com/RecyclifyApp/Backend-sub000/pkg/circuitbreaker"
)

const referenceScheme = "s3"

// ErrInvalidFileName is returned for empty or path-escaping names.
var ErrInvalidFileName = shared.NewDomainError("assets", "GetFileURL", shared.ErrInvalidInput, "invalid file name")

// S3Config holds bucket access for an S3-compatible store (Cloudflare R2 by default).
type S3Config struct {
	AccountID       string
	Endpoint        string // overrides the R2 endpoint derived from AccountID
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	URLExpiry       time.Duration
}

// Presigner is the part of the S3 presign client used here.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store stores bucket references for evidence images and presigns them on read.
type S3Store struct {
	presigner Presigner
	bucket    string
	prefix    string
	expiry    time.Duration
	breaker   *circuitbreaker.CircuitBreaker
}

// NewS3Store builds the S3 client from cfg.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("assets: bucket and credentials are required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" && cfg.AccountID != "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return NewS3StoreWithPresigner(s3.NewPresignClient(client), cfg, logger), nil
}

// NewS3StoreWithPresigner creates a store over an existing presigner.
func NewS3StoreWithPresigner(p Presigner, cfg S3Config, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	log := logger.With("component", "s3_asset_store")
	return &S3Store{
		presigner: p,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		expiry:    expiry,
		breaker: circuitbreaker.AssetStoreBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("asset store breaker state changed", "from", from.String(), "to", to.String())
		}),
	}
}

// GetFileURL returns the durable s3://bucket/key reference for fileName.
// Nothing is signed here; SignURL does that when the row is read.
func (s *S3Store) GetFileURL(_ context.Context, fileName string) (string, error) {
	key, err := s.objectKey(fileName)
	if err != nil {
		return "", err
	}
	ref := url.URL{Scheme: referenceScheme, Host: s.bucket, Path: "/" + key}
	return ref.String(), nil
}

// SignURL presigns a reference into this bucket.
// Any other URL is already viewable and is returned unchanged.
func (s *S3Store) SignURL(ctx context.Context, stored string) (string, error) {
	ref, err := url.Parse(stored)
	if err != nil || ref.Scheme != referenceScheme || ref.Host != s.bucket {
		return stored, nil
	}
	key := strings.TrimPrefix(ref.Path, "/")

	var signed string
	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		req, err := s.presigner.PresignGetObject(ctx,
			&s3.GetObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(key),
			},
			func(po *s3.PresignOptions) {
				po.Expires = s.expiry
			},
		)
		if err != nil {
			return err
		}
		signed = req.URL
		return nil
	})
	if err != nil {
		return "", shared.WrapError("assets", "SignURL", shared.ErrAssetStoreUnavailable, "presign failed", err)
	}
	return signed, nil
}

func (s *S3Store) objectKey(fileName string) (string, error) {
	name := strings.TrimSpace(fileName)
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return "", ErrInvalidFileName
	}
	if s.prefix == "" {
		return name, nil
	}
	return s.prefix + "/" + name, nil
}

// StaticStore builds public URLs from a base URL. Used in development.
type StaticStore struct {
	base *url.URL
}

// NewStaticStore parses baseURL.
func NewStaticStore(baseURL string) (*StaticStore, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid asset base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid asset base url %q", baseURL)
	}
	return &StaticStore{base: u}, nil
}

// GetFileURL joins the base URL and the escaped file name.
func (s *StaticStore) GetFileURL(_ context.Context, fileName string) (string, error) {
	name := strings.TrimSpace(fileName)
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return "", ErrInvalidFileName
	}
	return s.base.ResolveReference(&url.URL{Path: name}).String(), nil
}

// SignURL returns stored as is: public URLs do not expire.
func (s *StaticStore) SignURL(_ context.Context, stored string) (string, error) {
	return stored, nil
}

var (
	_ task.AssetStore     = (*S3Store)(nil)
	_ task.AssetStore     = (*StaticStore)(nil)
	_ task.EvidenceLinker = (*S3Store)(nil)
	_ task.EvidenceLinker = (*StaticStore)(nil)
)
