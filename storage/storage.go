// Package storage implements the artifact store: durable, immutable byte
// storage addressed by content-derived identifiers.
//
// Artifacts are written to a temporary file, hashed while streaming, then
// published with an atomic rename. A partially written artifact is never
// observable through Get or Exists. Uploaded and exported artifacts live in
// separate namespaces that never share a directory subtree.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

// Well-known namespaces.
const (
	NamespaceUploads = "uploads"
	NamespaceExports = "exports"
)

var (
	// ErrNotFound indicates the artifact reference is unknown.
	ErrNotFound = errors.New("artifact not found")
	// ErrStorage indicates an I/O failure on artifact read or write.
	ErrStorage = errors.New("storage failure")
	// ErrInvalidRef indicates a malformed artifact reference.
	ErrInvalidRef = errors.New("invalid artifact reference")
)

// Artifact describes a stored immutable byte sequence.
type Artifact struct {
	// Ref is the opaque reference callers use to retrieve the artifact,
	// in the form "<namespace>/<digest>".
	Ref string `json:"ref"`

	Namespace string    `json:"namespace"`
	Size      int64     `json:"size"`
	Digest    string    `json:"digest"` // hex-encoded SHA-256 of the content
	CreatedAt time.Time `json:"created_at"`
}

// Store is the artifact store contract.
type Store interface {
	// Put streams r into the given namespace and returns the stored
	// artifact. The content digest is computed during the write. Putting
	// identical bytes twice yields the same reference.
	Put(ctx context.Context, namespace string, r io.Reader) (*Artifact, error)

	// Get opens the artifact for reading. Returns ErrNotFound for unknown
	// references and ErrStorage on I/O failure.
	Get(ctx context.Context, ref string) (io.ReadCloser, error)

	// Stat returns artifact metadata without opening the content.
	Stat(ctx context.Context, ref string) (*Artifact, error)

	// Exists reports whether the reference resolves to a stored artifact.
	Exists(ctx context.Context, ref string) (bool, error)

	// Delete removes an artifact. Used by retention policies outside the
	// core; never called by the pipeline itself.
	Delete(ctx context.Context, ref string) error
}
