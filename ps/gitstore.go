package ps

import (
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-billy/v6/memfs"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/filemode"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/go-git/go-git/v6/storage/memory"
)

const snapshotFile = "snapshot.json"

// Revision describes one stored snapshot version.
type Revision struct {
	ID      string
	When    time.Time
	Message string
}

// GitStore versions the snapshot document in a git repository. Every Write
// becomes a commit holding a single snapshot blob, so the whole database
// history stays walkable with ordinary git tooling. Objects are written
// through the plumbing API; no worktree is involved.
type GitStore struct {
	repo  *git.Repository
	name  string
	email string
}

// NewMemoryGitStore builds a store over an in-memory repository.
func NewMemoryGitStore() (*GitStore, error) {
	repo, err := git.Init(memory.NewStorage(), git.WithWorkTree(memfs.New()))
	if err != nil {
		return nil, fmt.Errorf("init snapshot repo: %w", err)
	}
	return &GitStore{repo: repo, name: "nestdb", email: "nestdb@localhost"}, nil
}

// NewGitStore opens (or initializes) a repository rooted at dir.
func NewGitStore(dir string) (*GitStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	wt := osfs.New(dir)
	dotGit, err := wt.Chroot(".git")
	if err != nil {
		return nil, err
	}
	storer := filesystem.NewStorageWithOptions(
		dotGit,
		cache.NewObjectLRUDefault(),
		filesystem.Options{ExclusiveAccess: true})

	repo, err := git.Open(storer, wt)
	if err != nil {
		repo, err = git.Init(storer, git.WithWorkTree(wt))
		if err != nil {
			return nil, fmt.Errorf("init snapshot repo: %w", err)
		}
	}

	return &GitStore{repo: repo, name: "nestdb", email: "nestdb@localhost"}, nil
}

// SetIdentity overrides the author recorded on snapshot commits.
func (s *GitStore) SetIdentity(name, email string) {
	s.name = name
	s.email = email
}

func (s *GitStore) Read() ([]byte, error) {
	tree, err := s.headTree()
	if err != nil {
		return nil, ErrNoSnapshot
	}

	file, err := tree.File(snapshotFile)
	if err != nil {
		return nil, ErrNoSnapshot
	}
	content, err := file.Contents()
	if err != nil {
		return nil, fmt.Errorf("read snapshot blob: %w", err)
	}
	return []byte(content), nil
}

func (s *GitStore) Write(data []byte) error {
	blobHash, err := s.createBlob(data)
	if err != nil {
		return err
	}

	tree := &object.Tree{Entries: []object.TreeEntry{{
		Name: snapshotFile,
		Mode: filemode.Regular,
		Hash: blobHash,
	}}}

	obj := s.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return fmt.Errorf("encode snapshot tree: %w", err)
	}
	treeHash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return fmt.Errorf("store snapshot tree: %w", err)
	}

	return s.commit(treeHash, "snapshot")
}

// createBlob writes a blob object directly into the object store.
func (s *GitStore) createBlob(data []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	obj.SetSize(int64(len(data)))

	writer, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("create blob writer: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return plumbing.ZeroHash, fmt.Errorf("write blob: %w", err)
	}
	writer.Close()

	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("store blob: %w", err)
	}
	return hash, nil
}

// commit records treeHash on the current branch without touching any
// worktree.
func (s *GitStore) commit(treeHash plumbing.Hash, message string) error {
	var parents []plumbing.Hash
	headRef, err := s.repo.Head()
	if err == nil {
		parents = []plumbing.Hash{headRef.Hash()}
	}

	sig := object.Signature{Name: s.name, Email: s.email, When: time.Now()}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}

	obj := s.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return fmt.Errorf("encode commit: %w", err)
	}
	commitHash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return fmt.Errorf("store commit: %w", err)
	}

	branch := plumbing.Master
	if headRef != nil && headRef.Name().IsBranch() {
		branch = headRef.Name()
	}
	ref := plumbing.NewHashReference(branch, commitHash)
	if err := s.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("update head: %w", err)
	}
	return nil
}

func (s *GitStore) headTree() (*object.Tree, error) {
	headRef, err := s.repo.Head()
	if err != nil {
		return nil, err
	}
	commit, err := s.repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, err
	}
	return commit.Tree()
}

// Revisions lists stored snapshot versions, newest first.
func (s *GitStore) Revisions() ([]Revision, error) {
	headRef, err := s.repo.Head()
	if err != nil {
		return nil, nil
	}

	iter, err := s.repo.Log(&git.LogOptions{From: headRef.Hash()})
	if err != nil {
		return nil, fmt.Errorf("walk snapshot history: %w", err)
	}
	defer iter.Close()

	var revs []Revision
	err = iter.ForEach(func(c *object.Commit) error {
		revs = append(revs, Revision{
			ID:      c.Hash.String(),
			When:    c.Author.When,
			Message: c.Message,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return revs, nil
}

// ReadRevision reads the snapshot document as of a specific revision.
func (s *GitStore) ReadRevision(id string) ([]byte, error) {
	commit, err := s.repo.CommitObject(plumbing.NewHash(id))
	if err != nil {
		return nil, fmt.Errorf("revision %s: %w", id, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	file, err := tree.File(snapshotFile)
	if err != nil {
		return nil, ErrNoSnapshot
	}
	content, err := file.Contents()
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}
