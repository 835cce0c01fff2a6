// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"fmt"
	"sync"

	ghpkg "github.com/patchwork-cli/patchwork/pkg/github"
)

// Resolver is a mock implementation of github.Resolver with call tracking.
// Pull requests and clone URLs are served from maps keyed the way the
// pipeline asks for them; lookups with no entry return the package's
// not-found errors, so tests get real 404 behavior for free.
type Resolver struct {
	mu    sync.Mutex
	calls []MethodCall

	// PullRequests maps "owner/repo#number" to a head.
	PullRequests map[string]*ghpkg.PullRequestHead
	// CloneURLs maps "owner/repo" to a clone URL (tests use local paths).
	CloneURLs map[string]string

	// Configurable errors override the map lookups when set.
	ResolvePullRequestError error
	RepoCloneURLError       error
}

// MethodCall represents a tracked method call with its parameters.
type MethodCall struct {
	Method string
	Args   map[string]any
}

// NewResolver creates a new mock resolver.
func NewResolver() *Resolver {
	return &Resolver{
		PullRequests: make(map[string]*ghpkg.PullRequestHead),
		CloneURLs:    make(map[string]string),
	}
}

// PullRequestKey builds the lookup key used by ResolvePullRequest.
func PullRequestKey(repo string, number int) string {
	return fmt.Sprintf("%s#%d", repo, number)
}

// ResolvePullRequest implements github.Resolver.
func (m *Resolver) ResolvePullRequest(_ context.Context, repo string, number int) (*ghpkg.PullRequestHead, error) {
	m.trackCall("ResolvePullRequest", map[string]any{
		"repo":   repo,
		"number": number,
	})

	if m.ResolvePullRequestError != nil {
		return nil, m.ResolvePullRequestError
	}
	head, ok := m.PullRequests[PullRequestKey(repo, number)]
	if !ok {
		return nil, fmt.Errorf("%w: %s#%d", ghpkg.ErrPullRequestNotFound, repo, number)
	}
	return head, nil
}

// RepoCloneURL implements github.Resolver.
func (m *Resolver) RepoCloneURL(_ context.Context, owner, repo string) (string, error) {
	m.trackCall("RepoCloneURL", map[string]any{
		"owner": owner,
		"repo":  repo,
	})

	if m.RepoCloneURLError != nil {
		return "", m.RepoCloneURLError
	}
	url, ok := m.CloneURLs[owner+"/"+repo]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ghpkg.ErrRepositoryNotFound, owner, repo)
	}
	return url, nil
}

// Calls returns all tracked method calls.
func (m *Resolver) Calls() []MethodCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MethodCall(nil), m.calls...)
}

// CallCount returns how often the named method was called.
func (m *Resolver) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *Resolver) trackCall(method string, args map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MethodCall{Method: method, Args: args})
}

// Ensure the mock satisfies the interface at compile time.
var _ ghpkg.Resolver = (*Resolver)(nil)
