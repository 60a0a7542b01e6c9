package tree

import (
	"bytes"
	"context"
	"io"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
)

// GitRefTree serves a historical snapshot of a git-backed source tree. It is
// pre-populated by issuing one recursive listing against a revision and
// caching a path -> child-name-set map; the listing is a one-shot load,
// never streamed concurrently with reads. Reads go against that cache and
// a blob resolver, matching the Tree contract exactly.
type GitRefTree struct {
	children map[string][]string
	blobs    map[string]plumbing.Hash
	repo     *git.Repository
}

// NewGitRefTree opens repoPath and snapshots the tree at ref (a branch,
// tag, or commit-ish) into an in-memory listing cache.
func NewGitRefTree(repoPath, ref string) (*GitRefTree, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeBackend, "failed to open git repository", err)
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeBackend, "failed to resolve git revision "+ref, err)
	}

	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeBackend, "failed to load commit object", err)
	}

	root, err := commit.Tree()
	if err != nil {
		return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeBackend, "failed to load commit tree", err)
	}

	t := &GitRefTree{
		children: map[string][]string{"": {}},
		blobs:    map[string]plumbing.Hash{},
		repo:     repo,
	}

	walker := object.NewTreeWalker(root, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeBackend, "failed to walk git tree", err)
		}

		parent := parentOf(name)
		if _, ok := t.children[parent]; !ok {
			t.children[parent] = []string{}
		}
		t.children[parent] = append(t.children[parent], baseOf(name))

		if entry.Mode.IsFile() {
			t.blobs[name] = entry.Hash
		} else if _, ok := t.children[name]; !ok {
			t.children[name] = []string{}
		}
	}

	for k := range t.children {
		sort.Strings(t.children[k])
	}

	return t, nil
}

func parentOf(p string) string {
	idx := bytes.LastIndexByte([]byte(p), '/')
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

func baseOf(p string) string {
	idx := bytes.LastIndexByte([]byte(p), '/')
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}

func (t *GitRefTree) Exists(p string) (bool, error) {
	p = normalize(p)
	if _, ok := t.children[p]; ok {
		return true, nil
	}
	if _, ok := t.blobs[p]; ok {
		return true, nil
	}
	return false, nil
}

func (t *GitRefTree) IsDirectory(p string) (bool, error) {
	p = normalize(p)
	if _, ok := t.children[p]; ok {
		return true, nil
	}
	if _, ok := t.blobs[p]; ok {
		return false, nil
	}
	return false, mdpackerrors.PathNotFound(p)
}

func (t *GitRefTree) ReadDirectory(p string) ([]string, error) {
	p = normalize(p)
	names, ok := t.children[p]
	if !ok {
		return nil, mdpackerrors.PathNotFound(p)
	}
	out := make([]string, len(names))
	copy(out, names)
	return out, nil
}

func (t *GitRefTree) ReadFile(ctx context.Context, p string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	p = normalize(p)
	hash, ok := t.blobs[p]
	if !ok {
		return nil, mdpackerrors.PathNotFound(p)
	}
	blob, err := t.repo.BlobObject(hash)
	if err != nil {
		return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeBackend, "failed to load blob", err)
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeBackend, "failed to open blob reader", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (t *GitRefTree) Stream(ctx context.Context, p string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	p = normalize(p)
	hash, ok := t.blobs[p]
	if !ok {
		return nil, mdpackerrors.PathNotFound(p)
	}
	blob, err := t.repo.BlobObject(hash)
	if err != nil {
		return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeBackend, "failed to load blob", err)
	}
	return blob.Reader()
}
