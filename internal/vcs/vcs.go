// Package vcs provides the git access the analysis engine needs: opening
// a repository, resolving a revision, and reading file content from the
// tree at that revision without touching the worktree.
package vcs

import (
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Tree reads file content from a git tree.
type Tree interface {
	// File returns the content of the file at path within the tree.
	File(path string) ([]byte, error)
	// Files returns the paths of all files in the tree (recursively).
	Files() ([]string, error)
}

// Repository provides access to git repository operations.
type Repository interface {
	// TreeAt returns the tree for the given revision (branch, tag, hash,
	// or anything rev-parse understands).
	TreeAt(rev string) (Tree, error)
	// RepoPath returns the root path of the repository.
	RepoPath() string
}

// Open opens the git repository containing path, detecting .git in parent
// directories.
func Open(path string) (Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	return &gitRepository{repo: repo, root: wt.Filesystem.Root()}, nil
}

type gitRepository struct {
	repo *git.Repository
	root string
}

func (r *gitRepository) RepoPath() string { return r.root }

func (r *gitRepository) TreeAt(rev string) (Tree, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %q: %w", rev, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	return &gitTree{tree: tree}, nil
}

type gitTree struct {
	tree *object.Tree
}

func (t *gitTree) File(path string) ([]byte, error) {
	f, err := t.tree.File(path)
	if err != nil {
		return nil, err
	}
	reader, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func (t *gitTree) Files() ([]string, error) {
	var paths []string
	iter := t.tree.Files()
	defer iter.Close()
	err := iter.ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
