// Package render turns orders into fixed-layout PDF documents stored on disk.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/order-relay/internal/domain/order"
)

// Company is the static company block printed on every document.
type Company struct {
	Name    string
	TaxID   string
	Phone   string
	Address string
}

// Config holds Renderer settings.
type Config struct {
	// Dir is the directory artifacts are written to.
	Dir     string
	Company Company
}

// Artifact is a rendered order document.
type Artifact struct {
	Path       string
	GrandTotal decimal.Decimal
}

// Error is returned when the document could not be built or written. No
// artifact is left at the destination path when it occurs.
type Error struct {
	Order string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("render order %s: %v", e.Order, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Renderer writes order documents into a flat directory, one file per order
// number. Rendering the same number twice replaces the earlier file.
type Renderer struct {
	dir     string
	company Company
	now     func() time.Time
	locks   *keyedMutex

	// uncompressed disables stream compression so tests can inspect text.
	uncompressed bool
}

// New creates a Renderer.
func New(cfg Config) *Renderer {
	return &Renderer{
		dir:     cfg.Dir,
		company: cfg.Company,
		now:     time.Now,
		locks:   newKeyedMutex(),
	}
}

// Dir returns the artifact directory.
func (r *Renderer) Dir() string { return r.dir }

// PathFor returns the deterministic artifact path for an order number.
func (r *Renderer) PathFor(number string) string {
	return filepath.Join(r.dir, "pedido_"+number+".pdf")
}

// EnsureDir creates the artifact directory if it does not exist.
func (r *Renderer) EnsureDir() error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create orders dir %q", r.dir)
	}
	return nil
}

// CheckWritable verifies that a file can be created in the artifact directory.
func (r *Renderer) CheckWritable(_ context.Context) error {
	f, err := os.CreateTemp(r.dir, ".probe-*")
	if err != nil {
		return errors.Wrap(err, "orders dir not writable")
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// Render validates o, lays out its document and stores it at PathFor(o.Number).
// The returned grand total is the same value printed in the document.
func (r *Renderer) Render(ctx context.Context, o *order.Order) (*Artifact, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	total, err := r.layout(o, r.now()).write(&buf)
	if err != nil {
		return nil, &Error{Order: o.Number, Err: errors.Wrap(err, "build document")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Order: o.Number, Err: err}
	}

	path := r.PathFor(o.Number)

	unlock := r.locks.Lock(o.Number)
	defer unlock()

	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return nil, &Error{Order: o.Number, Err: err}
	}
	return &Artifact{Path: path, GrandTotal: total}, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place, so readers never observe a partially written document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pedido-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return errors.Wrap(err, "rename into place")
	}
	return nil
}
