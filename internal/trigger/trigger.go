// Package trigger models the VCS event that starts a run and decides whether
// the configured filter lets the pipeline run at all.
package trigger

import (
	"fmt"
	"strings"
)

// Kind is the VCS action that produced an event.
type Kind string

const (
	KindNone        Kind = ""
	KindPush        Kind = "push"
	KindPullRequest Kind = "pull_request"
)

// Environment variables read by FromEnv.
const (
	EnvEventName = "GITHUB_EVENT_NAME"
	EnvRef       = "GITHUB_REF"
	EnvBaseRef   = "GITHUB_BASE_REF"
	EnvSHA       = "GITHUB_SHA"
)

const branchRefPrefix = "refs/heads/"

// Event is a push or pull request and the branch it targets.
// For pull requests Branch is the base branch.
type Event struct {
	Kind   Kind
	Branch string
	Ref    string
	SHA    string
}

// Local reports whether the event carries no trigger information,
// which is the case for runs started by hand.
func (e Event) Local() bool {
	return e.Kind == KindNone
}

func (e Event) String() string {
	if e.Local() {
		return "local"
	}
	if e.Branch == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s to %s", e.Kind, e.Branch)
}

// FromEnv builds an event from the hosting platform's environment.
func FromEnv(getenv func(string) string) Event {
	ev := Event{
		Kind: Kind(getenv(EnvEventName)),
		Ref:  getenv(EnvRef),
		SHA:  getenv(EnvSHA),
	}
	switch ev.Kind {
	case KindPullRequest:
		ev.Branch = getenv(EnvBaseRef)
	default:
		ev.Branch = BranchFromRef(ev.Ref)
	}
	return ev
}

// WithOverrides returns a copy of e with non-empty values replaced.
// A branch given without a kind is treated as a push.
func (e Event) WithOverrides(kind, branch, ref string) Event {
	if kind != "" {
		e.Kind = Kind(kind)
	}
	if branch != "" {
		e.Branch = branch
		if e.Kind == KindNone {
			e.Kind = KindPush
		}
	}
	if ref != "" {
		e.Ref = ref
		if branch == "" && e.Kind != KindPullRequest {
			if b := BranchFromRef(ref); b != "" {
				e.Branch = b
			}
		}
	}
	return e
}

// BranchFromRef extracts the branch name from a fully qualified ref.
// Refs that do not name a branch yield "".
func BranchFromRef(ref string) string {
	if strings.HasPrefix(ref, branchRefPrefix) {
		return strings.TrimPrefix(ref, branchRefPrefix)
	}
	return ""
}

// Filter is the declarative event filter.
type Filter struct {
	Events   []string
	Branches []string
}

// Matches reports whether the pipeline should run for ev. When it should not,
// the returned reason explains why. Local events always match.
func (f Filter) Matches(ev Event) (bool, string) {
	if ev.Local() {
		return true, ""
	}
	if !contains(f.Events, string(ev.Kind)) {
		return false, fmt.Sprintf("event %q is not one of [%s]", ev.Kind, strings.Join(f.Events, ", "))
	}
	if !contains(f.Branches, ev.Branch) {
		return false, fmt.Sprintf("branch %q is not one of [%s]", ev.Branch, strings.Join(f.Branches, ", "))
	}
	return true, ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
