package docsystem

import (
	"fmt"

	"dmsiq/internal/domain"
	models "dmsiq/internal/domain/models/docsystem"
)

// path_manager.go - materialized path computation for the folder tree.
//
// Paths are "/name/" for root folders and "{parent_path}{name}/" otherwise. These
// functions are pure: they operate on an in-memory snapshot of a subtree and return
// the rewrites for the repository to apply inside one transaction.

// ComputePath returns the materialized path of a folder named name under parentPath.
// A nil or empty parentPath means the folder is a root folder.
func ComputePath(name string, parentPath *string) string {
	if parentPath == nil || *parentPath == "" {
		return "/" + name + "/"
	}
	return *parentPath + name + "/"
}

// CascadePaths computes new paths for root and every descendant in subtree after root
// is renamed or moved to newPath. subtree must contain root and its descendants.
//
// Traversal is depth-first over an explicit stack. Each folder is visited exactly once;
// a folder reachable twice means the snapshot is not a tree and is reported as an error.
func CascadePaths(root models.Folder, newPath string, subtree []models.Folder) ([]models.PathUpdate, error) {
	children := make(map[string][]models.Folder, len(subtree))
	for _, f := range subtree {
		if f.ParentID != nil && f.ID != root.ID {
			children[*f.ParentID] = append(children[*f.ParentID], f)
		}
	}

	type frame struct {
		folder models.Folder
		path   string
	}

	visited := make(map[string]bool, len(subtree))
	updates := make([]models.PathUpdate, 0, len(subtree))
	stack := []frame{{folder: root, path: newPath}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[top.folder.ID] {
			return nil, fmt.Errorf("%w: folder %s reached twice while cascading paths", domain.ErrValidation, top.folder.ID)
		}
		visited[top.folder.ID] = true

		updates = append(updates, models.PathUpdate{
			FolderID: top.folder.ID,
			OldPath:  top.folder.Path,
			NewPath:  top.path,
		})

		for _, child := range children[top.folder.ID] {
			parentPath := top.path
			stack = append(stack, frame{folder: child, path: ComputePath(child.Name, &parentPath)})
		}
	}

	return updates, nil
}

// ValidateMove rejects moving folderID under itself or any of its descendants.
// subtree is the folder's own subtree snapshot (including the folder).
func ValidateMove(folderID string, newParentID *string, subtree []models.Folder) error {
	if newParentID == nil {
		return nil
	}
	if *newParentID == folderID {
		return fmt.Errorf("%w: cannot move folder to be its own parent", domain.ErrValidation)
	}
	for _, f := range subtree {
		if f.ID == *newParentID {
			return fmt.Errorf("%w: cannot move folder to be a child of its own descendant", domain.ErrValidation)
		}
	}
	return nil
}
