// Package archive bundles rendered order documents into gzip-compressed tar
// files.
package archive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
)

// Options selects the documents to archive.
type Options struct {
	// Dir is the orders directory.
	Dir string
	// Out is the archive path.
	Out string
	// OlderThan keeps only documents last modified before Now-OlderThan.
	// Zero archives everything.
	OlderThan time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Entry is a document stored in an archive.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// DefaultName returns pedidos-YYYYMMDD.tar.gz for t.
func DefaultName(t time.Time) string {
	return "pedidos-" + t.Format("20060102") + ".tar.gz"
}

// IsDocument reports whether name looks like a rendered order document.
func IsDocument(name string) bool {
	return strings.HasPrefix(name, "pedido_") && strings.HasSuffix(name, ".pdf") &&
		len(name) > len("pedido_.pdf")
}

// Select lists the documents in opts.Dir matching opts, sorted by name.
func Select(opts Options) ([]Entry, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	dirEntries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, errors.Wrap(err, "read orders dir")
	}

	cutoff := now().Add(-opts.OlderThan)
	var out []Entry
	for _, de := range dirEntries {
		if !de.Type().IsRegular() || !IsDocument(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", de.Name())
		}
		if opts.OlderThan > 0 && !info.ModTime().Before(cutoff) {
			continue
		}
		out = append(out, Entry{Name: de.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Create writes the selected documents to opts.Out. Source files are left in
// place. An existing archive is replaced only after the new one is complete.
func Create(ctx context.Context, opts Options) ([]Entry, error) {
	entries, err := Select(opts)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(opts.Out), ".archive-*.tmp")
	if err != nil {
		return nil, errors.Wrap(err, "create temp archive")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := write(ctx, tmp, opts.Dir, entries); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrap(err, "close archive")
	}
	if err := os.Rename(tmp.Name(), opts.Out); err != nil {
		return nil, errors.Wrap(err, "rename archive")
	}
	return entries, nil
}

func write(ctx context.Context, w io.Writer, dir string, entries []Entry) error {
	zw := pgzip.NewWriter(w)
	tw := tar.NewWriter(zw)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addFile(tw, filepath.Join(dir, e.Name), e); err != nil {
			return errors.Wrapf(err, "add %s", e.Name)
		}
	}
	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "close tar")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "close gzip")
	}
	return nil
}

func addFile(tw *tar.Writer, path string, e Entry) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if err := tw.WriteHeader(&tar.Header{
		Name:    e.Name,
		Mode:    0o644,
		Size:    e.Size,
		ModTime: e.ModTime,
		Format:  tar.FormatPAX,
	}); err != nil {
		return err
	}
	// The size in the header is authoritative; a document replaced mid-copy
	// makes the archive fail instead of being silently truncated.
	n, err := io.Copy(tw, f)
	if err != nil {
		return err
	}
	if n != e.Size {
		return errors.Errorf("size changed while archiving: %d != %d", n, e.Size)
	}
	return nil
}

// List reads the entries of an archive created by Create.
func List(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	defer func() { _ = f.Close() }()

	zr, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "gzip")
	}
	defer func() { _ = zr.Close() }()

	var out []Entry
	tr := tar.NewReader(zr)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "tar")
		}
		out = append(out, Entry{Name: h.Name, Size: h.Size, ModTime: h.ModTime})
	}
}
