package classify

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/me/oblig/pkg/model"
)

// change is one path touched by the baseline commit.
type change struct {
	path    string
	kind    model.ChangeKind
	content []byte
}

// baselineCommit returns the newest commit reachable from HEAD whose author
// time is at or before cutoff, or nil if there is none. The download pins
// checkouts by the same rule.
func baselineCommit(repo *git.Repository, cutoff time.Time) (*object.Commit, error) {
	iter, err := repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}
	defer iter.Close()

	var found *object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if !c.Author.When.After(cutoff) {
			found = c
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// commitChanges diffs c against its first parent, or against the empty tree
// for a root commit.
func commitChanges(c *object.Commit) ([]change, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", c.Hash, err)
	}
	parentTree := &object.Tree{}
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return nil, fmt.Errorf("parent of %s: %w", c.Hash, err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return nil, fmt.Errorf("tree of %s: %w", parent.Hash, err)
		}
	}

	diff, err := parentTree.Diff(tree)
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", c.Hash, err)
	}

	out := make([]change, 0, len(diff))
	for _, ch := range diff {
		action, err := ch.Action()
		if err != nil {
			return nil, err
		}
		switch action {
		case merkletrie.Delete:
			out = append(out, change{path: ch.From.Name, kind: model.ChangeDeleted})
		case merkletrie.Insert, merkletrie.Modify:
			kind := model.ChangeAdded
			if action == merkletrie.Modify {
				kind = model.ChangeModified
			}
			content, err := blobContent(tree, ch.To.Name)
			if err != nil {
				return nil, err
			}
			out = append(out, change{path: ch.To.Name, kind: kind, content: content})
		}
	}
	return out, nil
}

func blobContent(tree *object.Tree, path string) ([]byte, error) {
	f, err := tree.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	r, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}
