package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// LocalFileSystem implements Store on a local directory tree.
//
// Layout: <root>/<namespace>/<digest[:2]>/<digest>. The two-character shard
// keeps directory fan-out bounded. Temporary files are written under
// <root>/<namespace>/.tmp and renamed into place on publish; rename within
// one filesystem is atomic.
type LocalFileSystem struct {
	Folder string
}

// NewFileSystem creates a new local file system store rooted at folder.
// It ensures the folder and both namespace subtrees exist.
func NewFileSystem(folder string) (*LocalFileSystem, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve storage root")
	}
	for _, ns := range []string{NamespaceUploads, NamespaceExports} {
		if err := os.MkdirAll(filepath.Join(abs, ns, ".tmp"), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create storage namespace")
		}
	}
	return &LocalFileSystem{Folder: abs}, nil
}

// Put streams r to a temporary file, hashing while writing, then publishes
// the artifact under its content digest.
func (fs *LocalFileSystem) Put(ctx context.Context, namespace string, r io.Reader) (*Artifact, error) {
	if err := validNamespace(namespace); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(ErrStorage, err.Error())
	}

	tmp, err := os.CreateTemp(filepath.Join(fs.Folder, namespace, ".tmp"), "put-*")
	if err != nil {
		return nil, errors.Wrapf(ErrStorage, "failed to create temp file: %v", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		tmp.Close()
		return nil, errors.Wrapf(ErrStorage, "failed to write artifact: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, errors.Wrapf(ErrStorage, "failed to sync artifact: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrapf(ErrStorage, "failed to close artifact: %v", err)
	}

	digest := hex.EncodeToString(h.Sum(nil))
	final := fs.digestPath(namespace, digest)

	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return nil, errors.Wrapf(ErrStorage, "failed to create shard directory: %v", err)
	}

	// Content-addressed: identical bytes land on the same path, so an
	// existing file already holds this exact content.
	if _, statErr := os.Stat(final); statErr == nil {
		return fs.artifactFor(namespace, digest)
	}

	if err := os.Rename(tmpName, final); err != nil {
		return nil, errors.Wrapf(ErrStorage, "failed to publish artifact: %v", err)
	}

	return &Artifact{
		Ref:       joinRef(namespace, digest),
		Namespace: namespace,
		Size:      size,
		Digest:    digest,
		CreatedAt: modTime(final),
	}, nil
}

// Get opens the artifact content for reading.
func (fs *LocalFileSystem) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	namespace, digest, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fs.digestPath(namespace, digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "ref %s", ref)
		}
		return nil, errors.Wrapf(ErrStorage, "failed to open artifact: %v", err)
	}
	return f, nil
}

// Stat returns artifact metadata.
func (fs *LocalFileSystem) Stat(ctx context.Context, ref string) (*Artifact, error) {
	namespace, digest, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	return fs.artifactFor(namespace, digest)
}

// Exists reports whether the reference resolves to a stored artifact.
func (fs *LocalFileSystem) Exists(ctx context.Context, ref string) (bool, error) {
	namespace, digest, err := splitRef(ref)
	if err != nil {
		return false, err
	}
	_, statErr := os.Stat(fs.digestPath(namespace, digest))
	if statErr == nil {
		return true, nil
	}
	if os.IsNotExist(statErr) {
		return false, nil
	}
	return false, errors.Wrapf(ErrStorage, "failed to stat artifact: %v", statErr)
}

// Delete removes an artifact.
func (fs *LocalFileSystem) Delete(ctx context.Context, ref string) error {
	namespace, digest, err := splitRef(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(fs.digestPath(namespace, digest)); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "ref %s", ref)
		}
		return errors.Wrapf(ErrStorage, "failed to delete artifact: %v", err)
	}
	return nil
}

// Verify re-reads the artifact and checks its content against the digest
// embedded in the reference.
func (fs *LocalFileSystem) Verify(ctx context.Context, ref string) error {
	namespace, digest, err := splitRef(ref)
	if err != nil {
		return err
	}
	f, err := os.Open(fs.digestPath(namespace, digest))
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "ref %s", ref)
		}
		return errors.Wrapf(ErrStorage, "failed to open artifact: %v", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return errors.Wrapf(ErrStorage, "failed to read artifact: %v", err)
	}
	if actual := hex.EncodeToString(h.Sum(nil)); actual != digest {
		return errors.Wrapf(ErrStorage, "digest mismatch for %s: stored content hashes to %s", ref, actual)
	}
	return nil
}

func (fs *LocalFileSystem) digestPath(namespace, digest string) string {
	return filepath.Join(fs.Folder, namespace, digest[:2], digest)
}

func (fs *LocalFileSystem) artifactFor(namespace, digest string) (*Artifact, error) {
	info, err := os.Stat(fs.digestPath(namespace, digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "ref %s", joinRef(namespace, digest))
		}
		return nil, errors.Wrapf(ErrStorage, "failed to stat artifact: %v", err)
	}
	return &Artifact{
		Ref:       joinRef(namespace, digest),
		Namespace: namespace,
		Size:      info.Size(),
		Digest:    digest,
		CreatedAt: info.ModTime(),
	}, nil
}

func joinRef(namespace, digest string) string {
	return namespace + "/" + digest
}

func splitRef(ref string) (namespace, digest string, err error) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 {
		return "", "", errors.Wrapf(ErrInvalidRef, "ref %q", ref)
	}
	namespace, digest = parts[0], parts[1]
	if err := validNamespace(namespace); err != nil {
		return "", "", err
	}
	if len(digest) != sha256.Size*2 || !isHex(digest) {
		return "", "", errors.Wrapf(ErrInvalidRef, "ref %q", ref)
	}
	return namespace, digest, nil
}

func validNamespace(namespace string) error {
	switch namespace {
	case NamespaceUploads, NamespaceExports:
		return nil
	}
	return errors.Wrapf(ErrInvalidRef, "unknown namespace %q", namespace)
}

func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Now()
	}
	return info.ModTime()
}

var _ Store = (*LocalFileSystem)(nil)
