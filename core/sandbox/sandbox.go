// Package sandbox declares the narrow interface the core consumes for
// workspace introspection during Aletheia's fact-checking passes. The
// sandbox/container lifecycle itself is an external collaborator; this
// package only names the operations the core calls.
package sandbox

import "context"

// Manager branches read-only overlays off a base workspace handle so
// concurrent fact-checking passes can inspect files without contending
// with each other or with the underlying workspace.
type Manager interface {
	// Branch creates a read-only overlay rooted at handle.
	Branch(ctx context.Context, handle string) (overlay string, err error)
	// Discard releases an overlay created by Branch.
	Discard(ctx context.Context, overlay string) error
	// ReadFile returns the contents of path within overlay.
	ReadFile(ctx context.Context, overlay, path string) (string, error)
	// ListFiles lists every file path within overlay.
	ListFiles(ctx context.Context, overlay string) ([]string, error)
	// GrepFiles returns the files within overlay whose contents match
	// pattern (a regular expression).
	GrepFiles(ctx context.Context, overlay, pattern string) ([]string, error)
}
