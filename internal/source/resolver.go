// Package source identifies the revision of the repository a run builds.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Lister returns the references advertised by a remote repository.
type Lister interface {
	List(ctx context.Context, url string) ([]*plumbing.Reference, error)
}

// RemoteLister lists references with go-git, like git ls-remote.
type RemoteLister struct{}

// List implements Lister.
func (RemoteLister) List(ctx context.Context, url string) ([]*plumbing.Reference, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{url},
	})
	refs, err := remote.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list references of %s: %w", url, err)
	}
	return refs, nil
}

// Resolver maps a branch, tag or HEAD to a commit hash.
type Resolver struct {
	lister Lister
}

// NewResolver returns a Resolver using lister, or RemoteLister when nil.
func NewResolver(lister Lister) *Resolver {
	if lister == nil {
		lister = RemoteLister{}
	}
	return &Resolver{lister: lister}
}

// Resolve returns the commit hash ref points to on url. An empty ref means the
// remote HEAD.
func (r *Resolver) Resolve(ctx context.Context, url, ref string) (string, error) {
	refs, err := r.lister.List(ctx, url)
	if err != nil {
		return "", err
	}
	byName := make(map[plumbing.ReferenceName]*plumbing.Reference, len(refs))
	for _, rf := range refs {
		byName[rf.Name()] = rf
	}

	for _, name := range candidates(ref) {
		rf, ok := byName[name]
		if !ok {
			continue
		}
		// Follow symbolic references (HEAD -> refs/heads/master).
		for depth := 0; rf.Type() == plumbing.SymbolicReference && depth < 5; depth++ {
			target, ok := byName[rf.Target()]
			if !ok {
				return "", fmt.Errorf("reference %s points to missing %s", rf.Name(), rf.Target())
			}
			rf = target
		}
		if rf.Type() != plumbing.HashReference {
			return "", fmt.Errorf("reference %s does not resolve to a commit", name)
		}
		return rf.Hash().String(), nil
	}
	return "", fmt.Errorf("reference %q not found on %s", ref, url)
}

func candidates(ref string) []plumbing.ReferenceName {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == "HEAD" {
		return []plumbing.ReferenceName{plumbing.HEAD}
	}
	if strings.HasPrefix(ref, "refs/") {
		return []plumbing.ReferenceName{plumbing.ReferenceName(ref)}
	}
	return []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	}
}
