package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fiscalerp/backend/internal/domain/fiscal"
	"go.uber.org/zap"
)

// FileStore archives XML on a POSIX filesystem
type FileStore struct {
	root      string
	logger    *zap.Logger
	conflicts atomic.Int64
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(root string, logger *zap.Logger) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{root: root, logger: logger}, nil
}

// Save implements DocumentStore
func (s *FileStore) Save(ctx context.Context, issuerCNPJ, documentKey, typePrefix string, xmlText []byte, emissionDate time.Time) (*SaveResult, error) {
	rel, err := relPath(issuerCNPJ, documentKey, typePrefix, emissionDate)
	if err != nil {
		return nil, err
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))

	sum := md5.Sum(xmlText)
	digest := hex.EncodeToString(sum[:])
	result := &SaveResult{Path: rel, Size: int64(len(xmlText)), MD5: digest}

	if existing, err := os.ReadFile(full); err == nil {
		existingSum := md5.Sum(existing)
		if hex.EncodeToString(existingSum[:]) == digest {
			result.Unchanged = true
			return result, nil
		}
		conflictPath := full + ".conflict." + strconv.FormatInt(time.Now().UnixNano(), 10)
		if err := os.Rename(full, conflictPath); err != nil {
			return nil, fmt.Errorf("rotate conflicting file: %w", err)
		}
		s.conflicts.Add(1)
		result.Conflicted = true
		s.logger.Warn("document content conflict",
			zap.String("key", documentKey),
			zap.String("rotated_to", filepath.Base(conflictPath)))
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create partition: %w", err)
	}
	if err := os.WriteFile(full, xmlText, 0o644); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	return result, nil
}

// Load implements DocumentStore
func (s *FileStore) Load(ctx context.Context, issuerCNPJ, documentKey, typePrefix string) ([]byte, error) {
	// Keyed documents with a known issuer resolve to one path.
	if issuerCNPJ != "" && fiscal.ValidateKey(documentKey) {
		rel, err := relPath(issuerCNPJ, documentKey, typePrefix, time.Time{})
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(rel)))
		if os.IsNotExist(err) {
			return nil, nil
		}
		return data, err
	}

	// Otherwise search by file name suffix.
	wanted := "_" + documentKey + ".xml"
	var found []byte
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || found != nil {
			return err
		}
		name := d.Name()
		if !strings.HasSuffix(name, wanted) {
			return nil
		}
		if typePrefix != "" && !strings.HasPrefix(name, typePrefix+"_") {
			return nil
		}
		if issuerCNPJ != "" && !strings.Contains(path, string(filepath.Separator)+issuerCNPJ+string(filepath.Separator)) {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		found = data
		return filepath.SkipAll
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// List implements DocumentStore
func (s *FileStore) List(ctx context.Context, issuerCNPJ string, from, to time.Time, typePrefix string) ([]Listed, error) {
	var out []Listed
	for _, kind := range []fiscal.DocumentKind{fiscal.KindNFe, fiscal.KindCTe, fiscal.KindNFSe} {
		issuerDir := filepath.Join(s.root, string(kind), issuerCNPJ)
		err := filepath.WalkDir(issuerDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return filepath.SkipAll
				}
				return err
			}
			if d.IsDir() || strings.Contains(d.Name(), ".conflict.") {
				return nil
			}
			prefix, key, ok := splitFileName(d.Name())
			if !ok {
				return nil
			}
			if typePrefix != "" && prefix != typePrefix {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			year, month, ok := partitionOf(issuerDir, path)
			if !ok || !partitionInRange(year, month, from, to) {
				return nil
			}
			out = append(out, Listed{
				Key:        key,
				TypePrefix: prefix,
				Path:       filepath.ToSlash(strings.TrimPrefix(path, s.root+string(filepath.Separator))),
				Size:       info.Size(),
				ModTime:    info.ModTime(),
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
func (s *FileStore) Retention(ctx context.Context, issuerCNPJ string, keepYears int) (*RetentionSummary, error) {
	if keepYears <= 0 {
		keepYears = 7
	}
	cutoff := time.Now().Year() - keepYears
	summary := &RetentionSummary{}

	for _, kind := range []fiscal.DocumentKind{fiscal.KindNFe, fiscal.KindCTe, fiscal.KindNFSe} {
		issuerDir := filepath.Join(s.root, string(kind), issuerCNPJ)
		entries, err := os.ReadDir(issuerDir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			year, err := strconv.Atoi(entry.Name())
			if err != nil || year > cutoff {
				continue
			}
			yearDir := filepath.Join(issuerDir, entry.Name())
			files, bytes, err := dirStats(yearDir)
			if err != nil {
				return nil, err
			}
			if err := os.RemoveAll(yearDir); err != nil {
				return nil, fmt.Errorf("remove partition %s: %w", entry.Name(), err)
			}
			summary.YearsRemoved = append(summary.YearsRemoved, entry.Name())
			summary.Files += files
			summary.Bytes += bytes
			s.logger.Info("retention sweep removed partition",
				zap.String("issuer", issuerCNPJ),
				zap.String("kind", string(kind)),
				zap.String("year", entry.Name()),
				zap.Int("files", files))
		}
	}
	return summary, nil
}

// ConflictCount implements DocumentStore
func (s *FileStore) ConflictCount() int64 {
	return s.conflicts.Load()
}

// splitFileName recovers prefix and key from <prefix>_<key>.xml. Both sides
// may contain underscores (evento_110111 prefixes, municipal composite keys),
// so the split point is wherever the remainder forms a valid key.
func splitFileName(name string) (prefix, key string, ok bool) {
	base, ok := strings.CutSuffix(name, ".xml")
	if !ok {
		return "", "", false
	}
	for idx := strings.Index(base, "_"); idx > 0; {
		candidate := base[idx+1:]
		if fiscal.ValidateKey(candidate) || nfseKeyPattern.MatchString(candidate) {
			return base[:idx], candidate, true
		}
		next := strings.Index(base[idx+1:], "_")
		if next < 0 {
			break
		}
		idx += 1 + next
	}
	return "", "", false
}

// partitionOf extracts the <YYYY>/<MM> components of a stored file path
func partitionOf(issuerDir, fullPath string) (year, month int, ok bool) {
	rel, err := filepath.Rel(issuerDir, fullPath)
	if err != nil {
		return 0, 0, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return 0, 0, false
	}
	year, errY := strconv.Atoi(parts[0])
	month, errM := strconv.Atoi(parts[1])
	if errY != nil || errM != nil {
		return 0, 0, false
	}
	return year, month, true
}

func partitionInRange(year, month int, from, to time.Time) bool {
	partition := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	if !from.IsZero() && partition.Before(time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC)) {
		return false
	}
	if !to.IsZero() && partition.After(to) {
		return false
	}
	return true
}

func dirStats(dir string) (files int, bytes int64, err error) {
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files++
		bytes += info.Size()
		return nil
	})
	return files, bytes, err
}
