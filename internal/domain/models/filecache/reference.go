package filecache

import (
	"fmt"
	"time"
)

// FileReference points at an internet-hosted file that may be copied into the local store.
// FileURL is the source of truth; DMSPath is where a cached copy lives.
type FileReference struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	FileName  string     `json:"file_name"`
	FileURL   string     `json:"file_url"`
	DMSPath   string     `json:"dms_path"`
	FileSize  *int64     `json:"file_size,omitempty"`
	State     CacheState `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsCached reports whether a local copy has been recorded.
func (r *FileReference) IsCached() bool {
	_, ok := r.State.(Cached)
	return ok
}

// CacheStatus is the persisted discriminator of a CacheState.
type CacheStatus string

const (
	StatusPending CacheStatus = "pending"
	StatusCached  CacheStatus = "cached"
	StatusFailed  CacheStatus = "failed"
)

// CacheState is one of Pending, Cached or Failed.
// Only Failed carries an error, so a cached reference with an error cannot be built.
type CacheState interface {
	Status() CacheStatus
	isCacheState()
}

type Pending struct{}

type Cached struct {
	CachedAt time.Time
}

type Failed struct {
	Reason   string
	FailedAt time.Time
}

func (Pending) Status() CacheStatus { return StatusPending }
func (Cached) Status() CacheStatus  { return StatusCached }
func (Failed) Status() CacheStatus  { return StatusFailed }

func (Pending) isCacheState() {}
func (Cached) isCacheState()  {}
func (Failed) isCacheState()  {}

// Transition validates a state change. Cached is final; Failed returns to Pending only
// through an explicit retry.
func Transition(from, to CacheState) error {
	switch from.(type) {
	case Pending:
		switch to.(type) {
		case Cached, Failed:
			return nil
		}
	case Failed:
		if _, ok := to.(Pending); ok {
			return nil
		}
	}
	return fmt.Errorf("invalid cache transition %s -> %s", from.Status(), to.Status())
}

// Columns flattens a state into its storage columns (is_cached, cache_status, cache_error).
func Columns(s CacheState) (isCached bool, status CacheStatus, cacheError *string) {
	switch st := s.(type) {
	case Cached:
		return true, StatusCached, nil
	case Failed:
		reason := st.Reason
		return false, StatusFailed, &reason
	default:
		return false, StatusPending, nil
	}
}

// StateFromColumns rebuilds a state from stored columns. Rows that disagree with
// themselves (cached flag without cached status) are rejected.
func StateFromColumns(isCached bool, status CacheStatus, cacheError *string, updatedAt time.Time) (CacheState, error) {
	switch status {
	case StatusCached:
		if !isCached {
			return nil, fmt.Errorf("cache_status cached with is_cached=false")
		}
		return Cached{CachedAt: updatedAt}, nil
	case StatusFailed:
		if isCached {
			return nil, fmt.Errorf("cache_status failed with is_cached=true")
		}
		reason := ""
		if cacheError != nil {
			reason = *cacheError
		}
		return Failed{Reason: reason, FailedAt: updatedAt}, nil
	case StatusPending, "":
		if isCached {
			return nil, fmt.Errorf("cache_status pending with is_cached=true")
		}
		return Pending{}, nil
	default:
		return nil, fmt.Errorf("unknown cache_status %q", status)
	}
}

// Metadata accompanies bytes returned from a file reference.
type Metadata struct {
	FileName    string      `json:"file_name"`
	FileSize    int64       `json:"file_size"`
	Source      Source      `json:"source"`
	CacheStatus CacheStatus `json:"cache_status"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Source tells where returned bytes came from.
type Source string

const (
	SourceLocalCache Source = "local_cache"
	SourceRemote     Source = "remote"
)

// Status summarizes caching progress for one owner.
type Status struct {
	Total      int     `json:"total_files"`
	Cached     int     `json:"cached_files"`
	Pending    int     `json:"pending_files"`
	Failed     int     `json:"failed_files"`
	Percentage float64 `json:"cache_percentage"`
}
