// Package syncer keeps the local test-data cache of a judge host
// converged with the server's authoritative per-problem file manifest.
// Only changed or missing files are downloaded; files the server no
// longer lists are removed. The updated manifest sidecar is the commit
// point: a crash before it lands only costs a redundant re-download.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/programme-lv/judgehost/api"
	"github.com/programme-lv/judgehost/internal/cache"
	"github.com/programme-lv/judgehost/internal/keylock"
)

// ErrDataNotFound is returned when the server manifest is empty, i.e.
// the problem has no test data at all.
var ErrDataNotFound = errors.New("problem has no test data")

// FormatError signals a server-side data inconsistency: the server
// stopped listing the problem between the task announcement and the
// link request. Not retried automatically.
type FormatError struct {
	Source string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("problem data for %s not found on server", e.Source)
}

// Source identifies the problem whose data is being synced
type Source struct {
	Host      string
	DomainID  string
	ProblemID string
}

// Key is the named-lock key guarding this problem's cache directory
func (s Source) Key() string {
	return s.Host + "/" + s.DomainID + "/" + s.ProblemID
}

// Server is the judge-server surface the sync engine needs
type Server interface {
	Ensure(ctx context.Context) error
	FileLinks(ctx context.Context, domainID string, problemID string, names []string) (map[string]string, error)
	Get(ctx context.Context, url string) (*http.Response, error)
}

type Syncer struct {
	cache  *cache.Store
	server Server
	locks  *keylock.Registry
	logger *slog.Logger

	// Concurrency bounds simultaneous file transfers; Timeout is the
	// hard per-file transfer deadline.
	Concurrency int
	Timeout     time.Duration

	lastSync atomic.Int64
}

// LastSync is the completion time of the most recent successful sync,
// zero before the first one
func (s *Syncer) LastSync() time.Time {
	n := s.lastSync.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(n, 0)
}

func New(store *cache.Store, srv Server, locks *keylock.Registry, logger *slog.Logger) *Syncer {
	return &Syncer{
		cache:       store,
		server:      srv,
		locks:       locks,
		logger:      logger,
		Concurrency: 10,
		Timeout:     60 * time.Second,
	}
}

// SyncProblem materializes the problem's test data on disk and returns
// the cache directory path. The whole operation runs under the named
// lock for src, so at most one sync per problem is in flight; syncs of
// different problems proceed in parallel. A failed sync leaves the
// local manifest at its pre-sync state and is safe to retry.
func (s *Syncer) SyncProblem(ctx context.Context, src Source, files []api.FileInfo, progress func(msg string)) (string, error) {
	if len(files) == 0 {
		return "", ErrDataNotFound
	}

	release, err := s.locks.Acquire(ctx, src.Key())
	if err != nil {
		return "", err
	}
	defer release()

	dir := s.cache.ProblemDir(src.Host, src.DomainID, src.ProblemID)
	if err := s.cache.EnsureDir(dir); err != nil {
		return "", err
	}

	local := s.cache.ReadManifest(dir)

	serverNames := mapset.NewSet[string]()
	next := cache.Manifest{}
	changed := make([]string, 0)
	for _, f := range files {
		serverNames.Add(f.Name)
		next[f.Name] = f.Fingerprint()
		if local[f.Name] != f.Fingerprint() {
			changed = append(changed, f.Name)
		}
	}

	localNames := mapset.NewSet[string]()
	for name := range local {
		localNames.Add(name)
	}
	for name := range localNames.Difference(serverNames).Iter() {
		// best effort: a leftover file never corrupts a sync
		if err := s.cache.RemoveFile(dir, name); err != nil {
			s.logger.Warn("failed to remove stale cached file",
				slog.String("source", src.Key()), slog.String("file", name),
				slog.Any("error", err))
		}
	}

	if len(changed) > 0 {
		if progress != nil {
			progress(fmt.Sprintf("Syncing testdata of %s (%d files), please wait...",
				src.DomainID+"/"+src.ProblemID, len(changed)))
		}
		if err := s.downloadChanged(ctx, src, dir, changed); err != nil {
			return "", err
		}
	}

	if err := s.cache.WriteManifest(dir, next); err != nil {
		return "", err
	}
	if err := s.cache.TouchUsage(dir); err != nil {
		s.logger.Warn("failed to update cache usage timestamp",
			slog.String("source", src.Key()), slog.Any("error", err))
	}
	s.lastSync.Store(time.Now().Unix())
	return dir, nil
}

func (s *Syncer) downloadChanged(ctx context.Context, src Source, dir string, changed []string) error {
	if err := s.server.Ensure(ctx); err != nil {
		return err
	}

	links, err := s.server.FileLinks(ctx, src.DomainID, src.ProblemID, changed)
	if err != nil {
		return err
	}
	if links == nil {
		return &FormatError{Source: src.DomainID + "/" + src.ProblemID}
	}

	errs, gctx := errgroup.WithContext(ctx)
	errs.SetLimit(s.Concurrency)
	for _, name := range changed {
		url, ok := links[name]
		if !ok {
			return &FormatError{Source: src.DomainID + "/" + src.ProblemID}
		}
		errs.Go(func() error {
			return s.downloadFile(gctx, url, dir, name)
		})
	}
	if err := errs.Wait(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", src.Key(), err)
	}
	return nil
}
