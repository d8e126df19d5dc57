package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	filePrefix = "history-"
	fileSuffix = ".cogmap.gz"
)

// Info describes an archive on disk.
type Info struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	RunCount  int       `json:"run_count"`
	Valid     bool      `json:"valid"` // header readable
}

// Retention limits the archives kept in a backup directory. Zero fields
// impose no limit; an archive must satisfy every set limit to be kept.
type Retention struct {
	Keep   int           // newest archives to keep
	MaxAge time.Duration // archives older than this are removed
}

// IsZero reports whether r removes nothing.
func (r Retention) IsZero() bool {
	return r.Keep <= 0 && r.MaxAge <= 0
}

// Select splits backups (newest first) into kept and expired archives.
func (r Retention) Select(backups []Info, now time.Time) (keep, expired []Info) {
	cutoff := now.Add(-r.MaxAge)
	for _, b := range backups {
		tooMany := r.Keep > 0 && len(keep) >= r.Keep
		tooOld := r.MaxAge > 0 && b.CreatedAt.Before(cutoff)
		if tooMany || tooOld {
			expired = append(expired, b)
			continue
		}
		keep = append(keep, b)
	}
	return keep, expired
}

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix)
}

// ListBackups returns the archives in dir, newest first. A missing
// directory holds no archives.
func ListBackups(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}

		info := Info{
			Path:      filepath.Join(dir, e.Name()),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		}
		if h, err := ReadHeader(info.Path); err == nil {
			info.CreatedAt = h.CreatedAt
			info.RunCount = h.RunCount
			info.Valid = true
		}
		backups = append(backups, info)
	}

	slices.SortFunc(backups, func(a, b Info) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Path, a.Path)
	})
	return backups, nil
}

// Prune removes the archives in dir that r does not keep and returns
// their paths.
func Prune(dir string, r Retention) ([]string, error) {
	if r.IsZero() {
		return nil, nil
	}
	backups, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}

	_, expired := r.Select(backups, time.Now())
	var removed []string
	for _, b := range expired {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		removed = append(removed, b.Path)
	}
	return removed, nil
}

// ParseAge parses an archive age such as "720h", "30d" or "2w".
func ParseAge(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative age %q", s)
		}
		return d, nil
	}

	units := map[byte]time.Duration{'d': 24 * time.Hour, 'w': 7 * 24 * time.Hour}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	unit, ok := units[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("invalid age %q (use a Go duration or a d/w suffix)", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return time.Duration(n) * unit, nil
}
