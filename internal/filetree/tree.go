// Package filetree builds hierarchical views from flat path listings.
package filetree

import (
	"path"
	"sort"
	"strings"

	"github.com/quarry-io/quarry/internal/model"
)

// Normalize returns the slash-cleaned, root-anchored form of p.
// "" and "/" normalize to "/".
func Normalize(p string) string {
	p = "/" + strings.Trim(p, "/")
	return path.Clean(p)
}

// ParentPath returns the parent of a normalized path, or "" for the root.
func ParentPath(p string) string {
	p = Normalize(p)
	if p == "/" {
		return ""
	}
	return path.Dir(p)
}

// BuildTree converts a flat record listing into a full recursive tree rooted
// at "/". Intermediate directories absent from the listing are created
// lazily; a path seen twice maps to the same node. Returns the root together
// with the file count and total byte size of all file leaves.
func BuildTree(records []model.FileRecord) (*model.FileTreeNode, int, int64) {
	root := &model.FileTreeNode{
		Name:     "/",
		Path:     "/",
		Type:     model.EntryDirectory,
		Children: []*model.FileTreeNode{},
	}

	// Arena of nodes keyed by normalized path; parent links resolve through
	// the arena instead of re-walking the tree.
	nodes := map[string]*model.FileTreeNode{"/": root}

	totalFiles := 0
	var totalSize int64

	for _, rec := range records {
		p := Normalize(rec.Path)
		if p == "/" {
			continue
		}

		parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
		parent := root
		current := ""

		for i, part := range parts {
			current = current + "/" + part

			node, ok := nodes[current]
			if !ok {
				isLeaf := i == len(parts)-1
				node = &model.FileTreeNode{
					Name: part,
					Path: current,
					Type: model.EntryDirectory,
				}
				if isLeaf && rec.Type == model.EntryFile {
					node.Type = model.EntryFile
					node.Size = rec.Size
					totalFiles++
					totalSize += rec.Size
				} else {
					node.Children = []*model.FileTreeNode{}
				}
				nodes[current] = node
				parent.Children = append(parent.Children, node)
			}
			parent = node
		}
	}

	sortChildren(root)
	return root, totalFiles, totalSize
}

// BuildListing produces a single-level view of the records directly under
// currentPath, with the same ordering rules as the full tree.
func BuildListing(records []model.FileRecord, currentPath string) *model.DirectoryContent {
	current := Normalize(currentPath)

	content := &model.DirectoryContent{
		CurrentPath: current,
		ParentPath:  ParentPath(current),
		Items:       []*model.FileItem{},
	}

	seen := map[string]bool{}
	for _, rec := range records {
		p := Normalize(rec.Path)
		if p == current || ParentPath(p) != current || seen[p] {
			continue
		}
		seen[p] = true

		item := &model.FileItem{
			Name: path.Base(p),
			Path: p,
			Type: rec.Type,
		}
		if rec.Type == model.EntryFile {
			item.Size = rec.Size
			item.Checksum = rec.Checksum
			item.ModifiedTime = rec.ModifiedTime
			content.TotalFiles++
			content.TotalSize += rec.Size
		} else {
			content.TotalDirectories++
		}
		content.Items = append(content.Items, item)
	}

	sort.SliceStable(content.Items, func(i, j int) bool {
		return entryLess(content.Items[i].Type, content.Items[i].Name,
			content.Items[j].Type, content.Items[j].Name)
	})

	return content
}

// entryLess orders directories before files, then case-insensitively by name.
func entryLess(ti model.EntryType, ni string, tj model.EntryType, nj string) bool {
	if ti != tj {
		return ti == model.EntryDirectory
	}
	return strings.ToLower(ni) < strings.ToLower(nj)
}

func sortChildren(node *model.FileTreeNode) {
	if len(node.Children) == 0 {
		return
	}
	sort.SliceStable(node.Children, func(i, j int) bool {
		return entryLess(node.Children[i].Type, node.Children[i].Name,
			node.Children[j].Type, node.Children[j].Name)
	})
	for _, child := range node.Children {
		sortChildren(child)
	}
}
