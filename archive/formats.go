package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/nwaples/rardecode"

	"github.com/tsawler/intelliparse/format"
)

// readLimited reads at most max bytes from rd; more is ErrLimitExceeded.
func readLimited(rd io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(rd, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("larger than %d bytes: %w", max, ErrLimitExceeded)
	}
	return data, nil
}

// member validates a member name and reads its content. A false return
// means the member was skipped with a warning.
func (r *Reader) member(name string, declared int64, open func() (io.Reader, error)) ([]byte, string, bool) {
	clean, err := SafePath(name)
	if err != nil {
		r.warn(name, err)
		return nil, "", false
	}
	if declared > r.limits.MaxEntrySize {
		r.warn(clean, fmt.Errorf("larger than %d bytes: %w", r.limits.MaxEntrySize, ErrLimitExceeded))
		return nil, "", false
	}
	rd, err := open()
	if err != nil {
		r.warn(clean, err)
		return nil, "", false
	}
	data, err := readLimited(rd, r.limits.MaxEntrySize)
	if c, ok := rd.(io.Closer); ok {
		c.Close()
	}
	if err != nil {
		r.warn(clean, err)
		return nil, "", false
	}
	return data, clean, true
}

func (r *Reader) readZip(data []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	// insecure names are rejected per member by SafePath
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("opening zip: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !f.Mode().IsRegular() {
			continue
		}
		content, name, ok := r.member(f.Name, int64(f.UncompressedSize64), func() (io.Reader, error) {
			return f.Open()
		})
		if !ok {
			continue
		}
		if err := r.add(name, content); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) readTar(data []byte) error {
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if len(r.entries) == 0 {
				return fmt.Errorf("reading tar: %w", err)
			}
			// the stream cannot be resynchronized after a bad header
			r.warn(r.name, fmt.Errorf("truncated tar: %w", err))
			return nil
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		content, name, ok := r.member(hdr.Name, hdr.Size, func() (io.Reader, error) { return tr, nil })
		if !ok {
			continue
		}
		if err := r.add(name, content); err != nil {
			return err
		}
	}
}

// readGzip handles both .tar.gz and a single compressed file.
func (r *Reader) readGzip(data []byte) error {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("opening gzip: %w", err)
	}
	defer zr.Close()

	plain, err := readLimited(zr, r.limits.MaxTotalSize)
	if err != nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}
	if format.DetectFromMagic(plain) == format.TAR {
		return r.readTar(plain)
	}

	name := zr.Name
	if name == "" {
		name = strings.TrimSuffix(path.Base(strings.ReplaceAll(r.name, `\`, "/")), path.Ext(r.name))
	}
	if int64(len(plain)) > r.limits.MaxEntrySize {
		return fmt.Errorf("%s: larger than %d bytes: %w", name, r.limits.MaxEntrySize, ErrLimitExceeded)
	}
	clean, err := SafePath(name)
	if err != nil {
		return err
	}
	return r.add(clean, plain)
}

func (r *Reader) readRar(data []byte) error {
	rr, err := rardecode.NewReader(bytes.NewReader(data), "")
	if err != nil {
		return fmt.Errorf("opening rar: %w", err)
	}
	for {
		hdr, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if len(r.entries) == 0 {
				return fmt.Errorf("reading rar: %w", err)
			}
			r.warn(r.name, fmt.Errorf("truncated rar: %w", err))
			return nil
		}
		if hdr.IsDir {
			continue
		}
		declared := hdr.UnPackedSize
		if hdr.UnKnownSize {
			declared = 0
		}
		content, name, ok := r.member(hdr.Name, declared, func() (io.Reader, error) { return rr, nil })
		if !ok {
			continue
		}
		if err := r.add(name, content); err != nil {
			return err
		}
	}
}
