package model

// UpdateResult describes what a reconciliation did with one record.
type UpdateResult string

const (
	UpdateUnchanged UpdateResult = "UNCHANGED"
	UpdateNew       UpdateResult = "NEW"
	UpdateModified  UpdateResult = "MODIFIED"
	UpdateRemoved   UpdateResult = "REMOVED"
	UpdateRejected  UpdateResult = "REJECTED"
)

// String returns the string representation of the update result.
func (r UpdateResult) String() string {
	return string(r)
}

// FileClassification is the verdict on a single file of a checkout.
type FileClassification string

const (
	FileUnchanged FileClassification = "UNCHANGED"
	FileNew       FileClassification = "NEW"
	FileChanged   FileClassification = "CHANGED"
	FileIgnored   FileClassification = "IGNORED"
	FileOld       FileClassification = "OLD"
)

// IsSubmitted reports whether files of class c count as student work.
func (c FileClassification) IsSubmitted() bool {
	return c == FileNew || c == FileChanged
}

// ChangeKind is the modification kind recorded in commit history.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeDeleted  ChangeKind = "deleted"
)

// FileState is the classification of one relative path of a checkout.
type FileState struct {
	Path   string             `json:"path"`
	Change ChangeKind         `json:"change"`
	Class  FileClassification `json:"class"`
}
