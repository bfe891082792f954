// Package memstore is an in-memory implementation of the repository interfaces for
// tests. ExecTx snapshots the whole store and restores it when the function fails, so
// rollback behavior can be asserted without a database.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dmsiq/internal/domain"
	docsys "dmsiq/internal/domain/models/docsystem"
	"dmsiq/internal/domain/models/filecache"
	"dmsiq/internal/domain/repositories"
)

type state struct {
	folders       map[string]docsys.Folder
	documents     map[string]docsys.Document
	versions      map[string]docsys.DocumentVersion
	categories    map[string]docsys.Category
	docCategories map[string]map[string]bool // document id -> category ids
	permissions   map[string]docsys.Permission
	references    map[string]filecache.FileReference
}

func newState() state {
	return state{
		folders:       map[string]docsys.Folder{},
		documents:     map[string]docsys.Document{},
		versions:      map[string]docsys.DocumentVersion{},
		categories:    map[string]docsys.Category{},
		docCategories: map[string]map[string]bool{},
		permissions:   map[string]docsys.Permission{},
		references:    map[string]filecache.FileReference{},
	}
}

func (s state) clone() state {
	c := state{
		folders:       maps.Clone(s.folders),
		documents:     maps.Clone(s.documents),
		versions:      maps.Clone(s.versions),
		categories:    maps.Clone(s.categories),
		docCategories: make(map[string]map[string]bool, len(s.docCategories)),
		permissions:   maps.Clone(s.permissions),
		references:    maps.Clone(s.references),
	}
	for id, set := range s.docCategories {
		c.docCategories[id] = maps.Clone(set)
	}
	return c
}

// Store holds all tables. Obtain repositories through its accessor methods.
type Store struct {
	mu  sync.Mutex
	st  state
	Now func() time.Time

	// Commits and Rollbacks count finished transactions
	Commits   int
	Rollbacks int
}

// New creates an empty store
func New() *Store {
	return &Store{st: newState(), Now: time.Now}
}

// ExecTx implements repositories.TransactionManager
func (s *Store) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.Rollbacks++
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.Commits++
	s.mu.Unlock()
	return nil
}

func (s *Store) Folders() *FolderRepo         { return &FolderRepo{s} }
func (s *Store) Documents() *DocumentRepo     { return &DocumentRepo{s} }
func (s *Store) Versions() *VersionRepo       { return &VersionRepo{s} }
func (s *Store) Categories() *CategoryRepo    { return &CategoryRepo{s} }
func (s *Store) Permissions() *PermissionRepo { return &PermissionRepo{s} }
func (s *Store) References() *ReferenceRepo   { return &ReferenceRepo{s} }

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
}

// ---- folders ----

type FolderRepo struct{ s *Store }

func (r *FolderRepo) Create(ctx context.Context, folder *docsys.Folder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, f := range r.s.st.folders {
		if !f.IsDeleted && f.Path == folder.Path {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("folder path %q already exists", folder.Path),
				ResourceType: "folder",
				ResourceID:   f.ID,
			}
		}
	}
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	now := r.s.Now()
	folder.CreatedAt, folder.UpdatedAt = now, now
	r.s.st.folders[folder.ID] = *folder
	return nil
}

func (r *FolderRepo) GetByID(ctx context.Context, id string) (*docsys.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.st.folders[id]
	if !ok || f.IsDeleted {
		return nil, notFound("folder", id)
	}
	return &f, nil
}

func (r *FolderRepo) GetByPath(ctx context.Context, path string) (*docsys.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, f := range r.s.st.folders {
		if !f.IsDeleted && f.Path == path {
			return &f, nil
		}
	}
	return nil, notFound("folder path", path)
}

func (r *FolderRepo) Update(ctx context.Context, folder *docsys.Folder) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.st.folders[folder.ID]
	if !ok || existing.IsDeleted {
		return notFound("folder", folder.ID)
	}
	folder.UpdatedAt = r.s.Now()
	r.s.st.folders[folder.ID] = *folder
	return nil
}

func (r *FolderRepo) SoftDelete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.st.folders[id]
	if !ok || f.IsDeleted {
		return notFound("folder", id)
	}
	f.IsDeleted = true
	f.UpdatedAt = r.s.Now()
	r.s.st.folders[id] = f
	return nil
}

func (r *FolderRepo) ListChildren(ctx context.Context, parentID *string, filter docsys.FolderFilter) ([]docsys.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []docsys.Folder
	for _, f := range r.s.st.folders {
		if f.IsDeleted {
			continue
		}
		if parentID == nil && f.ParentID != nil {
			continue
		}
		if parentID != nil && (f.ParentID == nil || *f.ParentID != *parentID) {
			continue
		}
		if filter.Department != "" && (f.Department == nil || *f.Department != filter.Department) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(f.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *FolderRepo) ListSubtree(ctx context.Context, path string) ([]docsys.Folder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []docsys.Folder
	for _, f := range r.s.st.folders {
		if !f.IsDeleted && strings.HasPrefix(f.Path, path) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *FolderRepo) UpdatePaths(ctx context.Context, updates []docsys.PathUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range updates {
		f, ok := r.s.st.folders[u.FolderID]
		if !ok {
			return notFound("folder", u.FolderID)
		}
		f.Path = u.NewPath
		r.s.st.folders[u.FolderID] = f
	}
	return nil
}

func (r *FolderRepo) CountChildren(ctx context.Context, id string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, f := range r.s.st.folders {
		if !f.IsDeleted && f.ParentID != nil && *f.ParentID == id {
			n++
		}
	}
	return n, nil
}

func (r *FolderRepo) AdjustDocumentCount(ctx context.Context, id string, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	f, ok := r.s.st.folders[id]
	if !ok {
		return notFound("folder", id)
	}
	f.DocumentCount = max(0, f.DocumentCount+delta)
	r.s.st.folders[id] = f
	return nil
}

// ---- documents ----

type DocumentRepo struct{ s *Store }

func cloneDoc(d docsys.Document) docsys.Document {
	d.Tags = slices.Clone(d.Tags)
	d.Metadata = maps.Clone(d.Metadata)
	d.CategoryIDs = nil
	return d
}

func (r *DocumentRepo) Create(ctx context.Context, doc *docsys.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.s.Now()
	}
	doc.UpdatedAt = doc.CreatedAt
	r.s.st.documents[doc.ID] = cloneDoc(*doc)
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*docsys.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.st.documents[id]
	if !ok || d.IsDeleted {
		return nil, notFound("document", id)
	}
	d = cloneDoc(d)
	return &d, nil
}

func (r *DocumentRepo) Update(ctx context.Context, doc *docsys.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.st.documents[doc.ID]
	if !ok || existing.IsDeleted {
		return notFound("document", doc.ID)
	}
	doc.UpdatedAt = r.s.Now()
	r.s.st.documents[doc.ID] = cloneDoc(*doc)
	return nil
}

func (r *DocumentRepo) SoftDelete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.st.documents[id]
	if !ok || d.IsDeleted {
		return notFound("document", id)
	}
	d.IsDeleted = true
	d.UpdatedAt = r.s.Now()
	r.s.st.documents[id] = d
	return nil
}

func (r *DocumentRepo) List(ctx context.Context, filter docsys.DocumentFilter) ([]docsys.Document, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []docsys.Document
	for _, d := range r.s.st.documents {
		if d.IsDeleted {
			continue
		}
		if filter.FolderID != nil && (d.FolderID == nil || *d.FolderID != *filter.FolderID) {
			continue
		}
		if filter.CategoryID != nil && !r.s.st.docCategories[d.ID][*filter.CategoryID] {
			continue
		}
		if filter.Search != "" {
			q := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(d.Name), q) && !strings.Contains(strings.ToLower(d.OriginalFilename), q) {
				continue
			}
		}
		if !containsAll(d.Tags, filter.Tags) {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.ConfidentialityLevel != "" && d.ConfidentialityLevel != filter.ConfidentialityLevel {
			continue
		}
		matched = append(matched, cloneDoc(d))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(filter.Offset, total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

func (r *DocumentRepo) CountByFolder(ctx context.Context, folderID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, d := range r.s.st.documents {
		if !d.IsDeleted && d.FolderID != nil && *d.FolderID == folderID {
			n++
		}
	}
	return n, nil
}

func (r *DocumentRepo) UpdateFolderPath(ctx context.Context, folderID, path string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, d := range r.s.st.documents {
		if d.FolderID != nil && *d.FolderID == folderID {
			p := path
			d.FolderPath = &p
			r.s.st.documents[id] = d
		}
	}
	return nil
}

func (r *DocumentRepo) Summary(ctx context.Context, since time.Time) (*docsys.Summary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	shared := map[string]bool{}
	for _, p := range r.s.st.permissions {
		if p.TargetKind == docsys.TargetDocument {
			shared[p.TargetID] = true
		}
	}

	summary := &docsys.Summary{}
	for _, d := range r.s.st.documents {
		if d.IsDeleted {
			continue
		}
		summary.TotalDocuments++
		summary.StorageBytes += d.SizeBytes
		if !d.CreatedAt.Before(since) {
			summary.RecentUploads++
		}
		if shared[d.ID] {
			summary.SharedDocuments++
		}
	}
	return summary, nil
}

// ---- versions ----

type VersionRepo struct{ s *Store }

func (r *VersionRepo) Create(ctx context.Context, version *docsys.DocumentVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, v := range r.s.st.versions {
		if v.DocumentID == version.DocumentID && v.VersionNumber == version.VersionNumber {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("version %d already exists", version.VersionNumber),
				ResourceType: "document_version",
				ResourceID:   v.ID,
			}
		}
	}
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	version.CreatedAt = r.s.Now()
	r.s.st.versions[version.ID] = *version
	return nil
}

func (r *VersionRepo) MaxVersionNumber(ctx context.Context, documentID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	highest := 0
	for _, v := range r.s.st.versions {
		if v.DocumentID == documentID && v.VersionNumber > highest {
			highest = v.VersionNumber
		}
	}
	return highest, nil
}

func (r *VersionRepo) ListByDocument(ctx context.Context, documentID string) ([]docsys.DocumentVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []docsys.DocumentVersion
	for _, v := range r.s.st.versions {
		if v.DocumentID == documentID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

func (r *VersionRepo) GetByNumber(ctx context.Context, documentID string, number int) (*docsys.DocumentVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, v := range r.s.st.versions {
		if v.DocumentID == documentID && v.VersionNumber == number {
			return &v, nil
		}
	}
	return nil, notFound("document version", fmt.Sprintf("%s#%d", documentID, number))
}

// ---- categories ----

type CategoryRepo struct{ s *Store }

func (r *CategoryRepo) Create(ctx context.Context, category *docsys.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.st.categories {
		if c.Name == category.Name {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("category %q already exists", category.Name),
				ResourceType: "category",
				ResourceID:   c.ID,
			}
		}
	}
	if category.ID == "" {
		category.ID = uuid.NewString()
	}
	r.s.st.categories[category.ID] = *category
	return nil
}

func (r *CategoryRepo) GetByID(ctx context.Context, id string) (*docsys.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.st.categories[id]
	if !ok {
		return nil, notFound("category", id)
	}
	return &c, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]docsys.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := slices.Collect(maps.Values(r.s.st.categories))
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CategoryRepo) AddToDocument(ctx context.Context, documentID, categoryID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.st.docCategories[documentID] == nil {
		r.s.st.docCategories[documentID] = map[string]bool{}
	}
	r.s.st.docCategories[documentID][categoryID] = true
	return nil
}

func (r *CategoryRepo) RemoveFromDocument(ctx context.Context, documentID, categoryID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.st.docCategories[documentID], categoryID)
	return nil
}

func (r *CategoryRepo) ListIDsForDocument(ctx context.Context, documentID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ids := slices.Collect(maps.Keys(r.s.st.docCategories[documentID]))
	sort.Strings(ids)
	return ids, nil
}

// ---- permissions ----

type PermissionRepo struct{ s *Store }

func (r *PermissionRepo) Create(ctx context.Context, permission *docsys.Permission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if permission.ID == "" {
		permission.ID = uuid.NewString()
	}
	if permission.GrantedAt.IsZero() {
		permission.GrantedAt = r.s.Now()
	}
	r.s.st.permissions[permission.ID] = *permission
	return nil
}

func (r *PermissionRepo) GetByID(ctx context.Context, id string) (*docsys.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.st.permissions[id]
	if !ok {
		return nil, notFound("permission", id)
	}
	return &p, nil
}

func (r *PermissionRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.st.permissions[id]; !ok {
		return notFound("permission", id)
	}
	delete(r.s.st.permissions, id)
	return nil
}

func (r *PermissionRepo) ListByTarget(ctx context.Context, kind docsys.TargetKind, targetID string) ([]docsys.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []docsys.Permission
	for _, p := range r.s.st.permissions {
		if p.TargetKind == kind && p.TargetID == targetID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out, nil
}

func (r *PermissionRepo) HasInheritable(ctx context.Context, folderID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.st.permissions {
		if p.TargetKind == docsys.TargetFolder && p.TargetID == folderID && p.InheritToSubfolders {
			return true, nil
		}
	}
	return false, nil
}

// ---- file references ----

type ReferenceRepo struct{ s *Store }

func (r *ReferenceRepo) Create(ctx context.Context, ref *filecache.FileReference) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if ref.ID == "" {
		ref.ID = uuid.NewString()
	}
	if ref.State == nil {
		ref.State = filecache.Pending{}
	}
	now := r.s.Now()
	ref.CreatedAt, ref.UpdatedAt = now, now
	r.s.st.references[ref.ID] = *ref
	return nil
}

func (r *ReferenceRepo) GetByID(ctx context.Context, id string) (*filecache.FileReference, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ref, ok := r.s.st.references[id]
	if !ok {
		return nil, notFound("file reference", id)
	}
	return &ref, nil
}

func (r *ReferenceRepo) uncached(match func(filecache.FileReference) bool) []filecache.FileReference {
	var out []filecache.FileReference
	for _, ref := range r.s.st.references {
		if !ref.IsCached() && match(ref) {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *ReferenceRepo) ListUncachedByOwner(ctx context.Context, ownerID string) ([]filecache.FileReference, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.uncached(func(ref filecache.FileReference) bool { return ref.OwnerID == ownerID }), nil
}

func (r *ReferenceRepo) ListUncached(ctx context.Context, limit int) ([]filecache.FileReference, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := r.uncached(func(ref filecache.FileReference) bool {
		return ref.State.Status() == filecache.StatusPending
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ReferenceRepo) UpdateState(ctx context.Context, ref *filecache.FileReference) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.st.references[ref.ID]
	if !ok {
		return notFound("file reference", ref.ID)
	}
	existing.State = ref.State
	existing.FileSize = ref.FileSize
	existing.UpdatedAt = r.s.Now()
	r.s.st.references[ref.ID] = existing
	ref.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *ReferenceRepo) CountByStatus(ctx context.Context, ownerID string) (map[filecache.CacheStatus]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	counts := map[filecache.CacheStatus]int{}
	for _, ref := range r.s.st.references {
		if ref.OwnerID == ownerID {
			counts[ref.State.Status()]++
		}
	}
	return counts, nil
}
