package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/fiscalerp/backend/internal/domain/fiscal"
	infraconfig "github.com/fiscalerp/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Ensure both backends implement DocumentStore
var (
	_ DocumentStore = (*FileStore)(nil)
	_ DocumentStore = (*S3Store)(nil)
)

// S3Store archives XML in an S3-compatible bucket (AWS S3, MinIO, RustFS)
// under the same key layout as FileStore.
type S3Store struct {
	client    *s3.Client
	bucket    string
	logger    *zap.Logger
	conflicts atomic.Int64
}

// NewS3Store creates an S3 store from configuration
func NewS3Store(cfg *infraconfig.StorageConfig, logger *zap.Logger) (*S3Store, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage credentials are required")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Store{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Save implements DocumentStore
func (s *S3Store) Save(ctx context.Context, issuerCNPJ, documentKey, typePrefix string, xmlText []byte, emissionDate time.Time) (*SaveResult, error) {
	key, err := relPath(issuerCNPJ, documentKey, typePrefix, emissionDate)
	if err != nil {
		return nil, err
	}

	sum := md5.Sum(xmlText)
	digest := hex.EncodeToString(sum[:])
	result := &SaveResult{Path: key, Size: int64(len(xmlText)), MD5: digest}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		// Single-part uploads carry the MD5 as the quoted ETag.
		if strings.Trim(aws.ToString(head.ETag), `"`) == digest {
			result.Unchanged = true
			return result, nil
		}
		conflictKey := key + ".conflict." + strconv.FormatInt(time.Now().UnixNano(), 10)
		_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			CopySource: aws.String(s.bucket + "/" + key),
			Key:        aws.String(conflictKey),
		})
		if err != nil {
			return nil, fmt.Errorf("rotate conflicting object: %w", err)
		}
		s.conflicts.Add(1)
		result.Conflicted = true
		s.logger.Warn("document content conflict",
			zap.String("key", documentKey),
			zap.String("rotated_to", conflictKey))
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(xmlText),
		ContentType: aws.String("application/xml"),
	})
	if err != nil {
		return nil, fmt.Errorf("put document: %w", err)
	}
	return result, nil
}

// Load implements DocumentStore
func (s *S3Store) Load(ctx context.Context, issuerCNPJ, documentKey, typePrefix string) ([]byte, error) {
	if issuerCNPJ != "" && fiscal.ValidateKey(documentKey) {
		key, err := relPath(issuerCNPJ, documentKey, typePrefix, time.Time{})
		if err != nil {
			return nil, err
		}
		return s.getObject(ctx, key)
	}

	// Search by suffix across the kind partitions.
	wanted := "_" + documentKey + ".xml"
	for _, kind := range []fiscal.DocumentKind{fiscal.KindNFe, fiscal.KindCTe, fiscal.KindNFSe} {
		prefix := string(kind) + "/"
		if issuerCNPJ != "" {
			prefix += issuerCNPJ + "/"
		}
		var token *string
		for {
			page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            aws.String(s.bucket),
				Prefix:            aws.String(prefix),
				ContinuationToken: token,
			})
			if err != nil {
				return nil, fmt.Errorf("list objects: %w", err)
			}
			for _, obj := range page.Contents {
				name := aws.ToString(obj.Key)
				if strings.Contains(name, ".conflict.") || !strings.HasSuffix(name, wanted) {
					continue
				}
				if typePrefix != "" && !strings.HasPrefix(baseName(name), typePrefix+"_") {
					continue
				}
				return s.getObject(ctx, name)
			}
			if !aws.ToBool(page.IsTruncated) {
				break
			}
			token = page.NextContinuationToken
		}
	}
	return nil, nil
}

// List implements DocumentStore
func (s *S3Store) List(ctx context.Context, issuerCNPJ string, from, to time.Time, typePrefix string) ([]Listed, error) {
	var out []Listed
	for _, kind := range []fiscal.DocumentKind{fiscal.KindNFe, fiscal.KindCTe, fiscal.KindNFSe} {
		prefix := string(kind) + "/" + issuerCNPJ + "/"
		err := s.forEachObject(ctx, prefix, func(obj types.Object) error {
			name := aws.ToString(obj.Key)
			if strings.Contains(name, ".conflict.") {
				return nil
			}
			filePrefix, docKey, ok := splitFileName(baseName(name))
			if !ok {
				return nil
			}
			if typePrefix != "" && filePrefix != typePrefix {
				return nil
			}
			year, month, ok := objectPartition(name)
			if !ok || !partitionInRange(year, month, from, to) {
				return nil
			}
			out = append(out, Listed{
				Key:        docKey,
				TypePrefix: filePrefix,
				Path:       name,
				Size:       aws.ToInt64(obj.Size),
				ModTime:    aws.ToTime(obj.LastModified),
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Retention implements DocumentStore
func (s *S3Store) Retention(ctx context.Context, issuerCNPJ string, keepYears int) (*RetentionSummary, error) {
	if keepYears <= 0 {
		keepYears = 7
	}
	cutoff := time.Now().Year() - keepYears
	summary := &RetentionSummary{}
	years := map[string]bool{}

	for _, kind := range []fiscal.DocumentKind{fiscal.KindNFe, fiscal.KindCTe, fiscal.KindNFSe} {
		prefix := string(kind) + "/" + issuerCNPJ + "/"
		var doomed []types.ObjectIdentifier
		err := s.forEachObject(ctx, prefix, func(obj types.Object) error {
			name := aws.ToString(obj.Key)
			year, _, ok := objectPartition(name)
			if !ok || year > cutoff {
				return nil
			}
			doomed = append(doomed, types.ObjectIdentifier{Key: obj.Key})
			years[strconv.Itoa(year)] = true
			summary.Files++
			summary.Bytes += aws.ToInt64(obj.Size)
			return nil
		})
		if err != nil {
			return nil, err
		}
		for start := 0; start < len(doomed); start += 1000 {
			end := min(start+1000, len(doomed))
			_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{Objects: doomed[start:end]},
			})
			if err != nil {
				return nil, fmt.Errorf("delete expired objects: %w", err)
			}
		}
	}
	for year := range years {
		summary.YearsRemoved = append(summary.YearsRemoved, year)
	}
	return summary, nil
}

// ConflictCount implements DocumentStore
func (s *S3Store) ConflictCount() int64 {
	return s.conflicts.Load()
}

func (s *S3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NoSuchKey
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3Store) forEachObject(ctx context.Context, prefix string, fn func(types.Object) error) error {
	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if err := fn(obj); err != nil {
				return err
			}
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		token = page.NextContinuationToken
	}
	return nil
}

func baseName(key string) string {
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

// objectPartition extracts year/month from <kind>/<issuer>/<YYYY>/<MM>/<file>
func objectPartition(key string) (year, month int, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 5 {
		return 0, 0, false
	}
	year, errY := strconv.Atoi(parts[2])
	month, errM := strconv.Atoi(parts[3])
	if errY != nil || errM != nil {
		return 0, 0, false
	}
	return year, month, true
}
