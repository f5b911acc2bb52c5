// SPDX-License-Identifier: MIT
package gitx

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrAuthFailure marks authentication/authorization failures.
	ErrAuthFailure = errors.New("git auth error")
	// ErrNetworkFailure marks network/transport failures.
	ErrNetworkFailure = errors.New("git network error")
	// ErrCorruptRepo marks corrupt or invalid-repository failures.
	ErrCorruptRepo = errors.New("git corrupt repository")
	// ErrMissingRemoteRef marks missing upstream/ref/remote failures.
	ErrMissingRemoteRef = errors.New("git missing remote")
)

// outputKinds maps git output fragments to class sentinels, checked in order.
var outputKinds = []struct {
	kind    error
	needles []string
}{
	{ErrAuthFailure, []string{"permission denied", "authentication failed", "access denied", "publickey", "could not read username", "credential"}},
	{ErrNetworkFailure, []string{"could not resolve host", "network is unreachable", "connection timed out", "failed to connect", "temporary failure in name resolution", "tls handshake timeout"}},
	{ErrCorruptRepo, []string{"not a git repository", "bad object", "corrupt", "object file"}},
	{ErrMissingRemoteRef, []string{"repository not found", "couldn't find remote ref", "remote ref does not exist", "no such remote"}},
}

// kindOf returns the class sentinel for git output, or nil.
func kindOf(output string) error {
	msg := strings.ToLower(output)
	for _, k := range outputKinds {
		if containsAny(msg, k.needles...) {
			return k.kind
		}
	}
	return nil
}

// ClassifyError maps git/process errors into broad actionable categories.
// Errors from GitRunner carry their class; other errors fall back to the
// same output heuristics on their message.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	kind := kindOf(err.Error())
	for _, k := range outputKinds {
		if errors.Is(err, k.kind) {
			kind = k.kind
			break
		}
	}
	switch kind {
	case ErrAuthFailure:
		return "auth"
	case ErrNetworkFailure:
		return "network"
	case ErrCorruptRepo:
		return "corrupt"
	case ErrMissingRemoteRef:
		return "missing_remote"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return "timeout"
	case containsAny(msg, "could not apply", "after resolving the conflicts", "merge conflict"):
		return "conflict"
	default:
		return "unknown"
	}
}

func containsAny(msg string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
