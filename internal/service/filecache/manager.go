package filecache

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"dmsiq/internal/config"
	"dmsiq/internal/domain"
	"dmsiq/internal/domain/models/filecache"
	fcRepo "dmsiq/internal/domain/repositories/filecache"
	"dmsiq/internal/domain/services"
	fcSvc "dmsiq/internal/domain/services/filecache"
)

var _ fcSvc.RemoteFileManager = (*Manager)(nil)

// Options tunes the manager's network and concurrency behaviour
type Options struct {
	ReadTimeout  time.Duration // get_file remote fallback
	FetchTimeout time.Duration // cache_file download
	Concurrency  int           // parallel downloads in a batch
}

// Manager implements RemoteFileManager. At most one download per reference runs at
// a time within the process; callers racing on the same reference share its result.
type Manager struct {
	refs    fcRepo.ReferenceRepository
	files   services.FileStore
	fetcher Fetcher
	metrics *Metrics
	opts    Options

	flights singleflight.Group
	now     func() time.Time
	logger  *slog.Logger
}

// NewManager creates a remote file manager
func NewManager(
	refs fcRepo.ReferenceRepository,
	files services.FileStore,
	fetcher Fetcher,
	metrics *Metrics,
	opts Options,
	logger *slog.Logger,
) *Manager {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 60 * time.Second
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Manager{
		refs:    refs,
		files:   files,
		fetcher: fetcher,
		metrics: metrics,
		opts:    opts,
		now:     time.Now,
		logger:  logger,
	}
}

// Register records a newly discovered remote file in the pending state
func (m *Manager) Register(ctx context.Context, req *fcSvc.RegisterRequest) (*filecache.FileReference, error) {
	if err := validateRegisterRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	discovered := req.DiscoveredAt
	if discovered.IsZero() {
		discovered = m.now()
	}

	ref := &filecache.FileReference{
		OwnerID:  req.OwnerID,
		FileName: req.FileName,
		FileURL:  req.FileURL,
		DMSPath:  GenerateTargetPath(req.OwnerID, req.FileName, discovered),
		State:    filecache.Pending{},
	}
	if err := m.refs.Create(ctx, ref); err != nil {
		return nil, err
	}

	m.logger.Info("file reference registered",
		"id", ref.ID,
		"owner_id", ref.OwnerID,
		"dms_path", ref.DMSPath,
	)
	return ref, nil
}

// GetFile serves local bytes for cached references and remote bytes otherwise.
// It never changes cache state, even when a cached copy turns out to be unreadable.
func (m *Manager) GetFile(ctx context.Context, id string) ([]byte, *filecache.Metadata, error) {
	ref, err := m.refs.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if ref.IsCached() {
		content, err := m.files.Read(ctx, ref.DMSPath)
		if err == nil {
			m.metrics.read(filecache.SourceLocalCache)
			return content, m.metadata(ref, content, filecache.SourceLocalCache), nil
		}
		m.logger.Warn("cached copy unreadable, serving remote",
			"id", ref.ID,
			"dms_path", ref.DMSPath,
			"error", err,
		)
	}

	if ref.FileURL == "" {
		return nil, nil, fmt.Errorf("file reference %s: %w", id, domain.ErrNoSourceAvailable)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.opts.ReadTimeout)
	defer cancel()

	content, err := m.fetcher.Fetch(fetchCtx, ref.FileURL)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch file reference %s: %w", id, err)
	}

	m.metrics.read(filecache.SourceRemote)
	return content, m.metadata(ref, content, filecache.SourceRemote), nil
}

func (m *Manager) metadata(ref *filecache.FileReference, content []byte, source filecache.Source) *filecache.Metadata {
	return &filecache.Metadata{
		FileName:    ref.FileName,
		FileSize:    int64(len(content)),
		Source:      source,
		CacheStatus: ref.State.Status(),
		Timestamp:   m.now(),
	}
}

// CacheFile downloads a reference into the local store. Concurrent calls for the same
// reference join the download already in flight. The download is not tied to any one
// caller: a caller that gives up gets ctx.Err() while the others still get the result.
func (m *Manager) CacheFile(ctx context.Context, id string) (*fcSvc.CacheResult, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := m.flights.DoChan(id, func() (interface{}, error) {
		return m.cacheFile(flightCtx, id)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*fcSvc.CacheResult), nil
	}
}

func (m *Manager) cacheFile(ctx context.Context, id string) (*fcSvc.CacheResult, error) {
	// state is re-read inside the flight, so a caller arriving after a finished
	// download sees Cached and does not fetch again
	ref, err := m.refs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch ref.State.(type) {
	case filecache.Cached:
		m.metrics.result(resultAlreadyCached)
		return &fcSvc.CacheResult{Reference: ref}, nil
	case filecache.Failed:
		// calling cache_file again is the explicit retry
		if err := filecache.Transition(ref.State, filecache.Pending{}); err != nil {
			return nil, err
		}
		ref.State = filecache.Pending{}
	}

	if ref.FileURL == "" {
		return m.fail(ctx, ref, "Download failed: no source url")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.opts.FetchTimeout)
	defer cancel()

	start := time.Now()
	content, err := m.fetcher.Fetch(fetchCtx, ref.FileURL)
	m.metrics.fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return m.fail(ctx, ref, "Download failed: "+err.Error())
	}

	written, err := m.files.Save(ctx, ref.DMSPath, bytes.NewReader(content))
	if err != nil {
		return m.fail(ctx, ref, "Unexpected error: "+err.Error())
	}

	cached := filecache.Cached{CachedAt: m.now()}
	if err := filecache.Transition(ref.State, cached); err != nil {
		return nil, err
	}
	ref.State = cached
	ref.FileSize = &written
	if err := m.refs.UpdateState(ctx, ref); err != nil {
		return nil, fmt.Errorf("record cached state for %s: %w", ref.ID, err)
	}

	m.metrics.result(resultDownloaded)
	m.metrics.bytesCached.Add(float64(written))
	m.logger.Info("file cached",
		"id", ref.ID,
		"dms_path", ref.DMSPath,
		"bytes", written,
		"duration", time.Since(start),
	)
	return &fcSvc.CacheResult{Reference: ref, Downloaded: true}, nil
}

// fail records a Failed state. The state is written even when ctx is already
// cancelled so a timed out download never stays pending.
func (m *Manager) fail(ctx context.Context, ref *filecache.FileReference, reason string) (*fcSvc.CacheResult, error) {
	failed := filecache.Failed{Reason: reason, FailedAt: m.now()}
	if err := filecache.Transition(ref.State, failed); err != nil {
		return nil, err
	}
	ref.State = failed

	if err := m.refs.UpdateState(context.WithoutCancel(ctx), ref); err != nil {
		return nil, fmt.Errorf("record cache failure for %s: %w", ref.ID, err)
	}

	m.metrics.result(resultFailed)
	m.logger.Warn("file caching failed", "id", ref.ID, "url", ref.FileURL, "reason", reason)
	return &fcSvc.CacheResult{
		Reference: ref,
		Failure:   &domain.CacheFailureError{ReferenceID: ref.ID, Reason: reason},
	}, nil
}

// BulkCache caches every uncached reference of one owner
func (m *Manager) BulkCache(ctx context.Context, ownerID string) (*fcSvc.BulkResult, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner_id is required", domain.ErrValidation)
	}
	refs, err := m.refs.ListUncachedByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := m.cacheAll(ctx, refs)
	m.logger.Info("bulk cache finished",
		"owner_id", ownerID,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return result, nil
}

// CacheUncached caches up to limit uncached references across all owners
func (m *Manager) CacheUncached(ctx context.Context, limit int) (*fcSvc.BulkResult, error) {
	refs, err := m.ListUncached(ctx, limit)
	if err != nil {
		return nil, err
	}
	return m.cacheAll(ctx, refs), nil
}

// cacheAll never stops early; every reference gets its attempt
func (m *Manager) cacheAll(ctx context.Context, refs []filecache.FileReference) *fcSvc.BulkResult {
	var (
		mu     sync.Mutex
		result fcSvc.BulkResult
		errs   *multierror.Error
	)

	var g errgroup.Group
	g.SetLimit(m.opts.Concurrency)

	for _, ref := range refs {
		g.Go(func() error {
			res, err := m.CacheFile(ctx, ref.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failed++
				errs = multierror.Append(errs, fmt.Errorf("reference %s: %w", ref.ID, err))
			case res.Failure != nil:
				result.Failed++
				errs = multierror.Append(errs, res.Failure)
			default:
				result.Succeeded++
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Errors = errs.ErrorOrNil()
	return &result
}

// Retry moves a failed reference back to pending
func (m *Manager) Retry(ctx context.Context, id string) (*filecache.FileReference, error) {
	ref, err := m.refs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := filecache.Transition(ref.State, filecache.Pending{}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	ref.State = filecache.Pending{}
	if err := m.refs.UpdateState(ctx, ref); err != nil {
		return nil, err
	}

	m.logger.Info("file reference reset to pending", "id", id)
	return ref, nil
}

// GetCacheStatus summarizes one owner's references
func (m *Manager) GetCacheStatus(ctx context.Context, ownerID string) (*filecache.Status, error) {
	counts, err := m.refs.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	status := &filecache.Status{
		Cached:  counts[filecache.StatusCached],
		Pending: counts[filecache.StatusPending],
		Failed:  counts[filecache.StatusFailed],
	}
	status.Total = status.Cached + status.Pending + status.Failed
	if status.Total > 0 {
		status.Percentage = math.Round(float64(status.Cached)/float64(status.Total)*100*100) / 100
	}
	return status, nil
}

// ListUncached returns pending references, oldest first. Failed references
// are left out until a caller retries them.
func (m *Manager) ListUncached(ctx context.Context, limit int) ([]filecache.FileReference, error) {
	if limit <= 0 {
		limit = config.DefaultUncachedBatch
	}
	return m.refs.ListUncached(ctx, limit)
}

// LocalPath returns where the cached copy of a reference lives on disk
func (m *Manager) LocalPath(ctx context.Context, id string) (string, error) {
	ref, err := m.refs.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !ref.IsCached() {
		return "", fmt.Errorf("file reference %s has no cached copy: %w", id, domain.ErrNotFound)
	}
	return m.files.FullPath(ref.DMSPath), nil
}

func validateRegisterRequest(req *fcSvc.RegisterRequest) error {
	return validation.ValidateStruct(req,
		validation.Field(&req.OwnerID, validation.Required, validation.Length(1, 255)),
		validation.Field(&req.FileName, validation.Required, validation.Length(1, 255)),
		validation.Field(&req.FileURL, validation.Required, is.URL),
	)
}
