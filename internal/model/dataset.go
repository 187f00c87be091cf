// Package model defines the domain types shared across the service.
package model

import "time"

// Dataset is a named, versioned collection of files tracked through a git
// repository paired with a dvc remote. The repo URL and remote URL are fixed
// at initialization and never change afterwards.
type Dataset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Tenant    string    `json:"tenant"`
	RepoURL   string    `json:"repo_url"`
	RemoteURL string    `json:"remote_url"`
	FileCount int       `json:"file_count"`
	TotalSize int64     `json:"total_size"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Version is an immutable tagged snapshot of a dataset. Tags are append-only:
// a tag is bound to exactly one commit and is never reused.
type Version struct {
	ID         string    `json:"id"`
	DatasetID  string    `json:"dataset_id"`
	Tag        string    `json:"tag"`
	CommitHash string    `json:"commit_hash"`
	FileCount  int       `json:"file_count"`
	TotalSize  int64     `json:"total_size"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EntryType discriminates files from directories in listings and trees.
type EntryType string

const (
	EntryFile      EntryType = "file"
	EntryDirectory EntryType = "directory"
)

// FileRecord is one entry of a flat listing for a dataset version.
type FileRecord struct {
	Path         string     `json:"path"`
	Type         EntryType  `json:"type"`
	Size         int64      `json:"size,omitempty"`
	Checksum     string     `json:"checksum,omitempty"`
	ModifiedTime *time.Time `json:"modified_time,omitempty"`
}

// FileTreeNode is one node of a hierarchical file tree. Directories own an
// ordered children slice; files carry a nil children slice, which keeps an
// empty directory distinguishable from a file in the serialized form.
type FileTreeNode struct {
	Name     string          `json:"name"`
	Path     string          `json:"path"`
	Type     EntryType       `json:"type"`
	Size     int64           `json:"size,omitempty"`
	Children []*FileTreeNode `json:"children,omitempty"`
}

// FileTree is the full recursive tree for one dataset version.
type FileTree struct {
	DatasetID  string        `json:"dataset_id"`
	VersionTag string        `json:"version_tag"`
	Root       *FileTreeNode `json:"root"`
	TotalFiles int           `json:"total_files"`
	TotalSize  int64         `json:"total_size"`
}

// FileItem is one entry of a single-level directory listing.
type FileItem struct {
	Name         string     `json:"name"`
	Path         string     `json:"path"`
	Type         EntryType  `json:"type"`
	Size         int64      `json:"size,omitempty"`
	Checksum     string     `json:"checksum,omitempty"`
	ModifiedTime *time.Time `json:"modified_time,omitempty"`
}

// DirectoryContent is a single-level browse result.
type DirectoryContent struct {
	CurrentPath      string      `json:"current_path"`
	ParentPath       string      `json:"parent_path,omitempty"`
	Items            []*FileItem `json:"items"`
	TotalFiles       int         `json:"total_files"`
	TotalDirectories int         `json:"total_directories"`
	TotalSize        int64       `json:"total_size"`
}

// FileReference names one remote file to materialize into a new version.
// Checksum, when set, is the expected CRC32 of the downloaded content in
// lowercase hex; mismatches count as failed downloads.
type FileReference struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum,omitempty"`
}

// CommitInfo is one entry of a repository's commit history.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// Org is a hosting-service organization.
type Org struct {
	ID       int64  `json:"id"`
	Name     string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
}

// Repo is a hosting-service repository.
type Repo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	CloneURL string `json:"clone_url"`
	Private  bool   `json:"private"`
}
