// Package source expands command-line inputs into loadable items: single
// files, directory trees and s3://bucket/prefix object listings.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsawler/intelliparse/format"
)

// ErrTooLarge is returned when an item exceeds the size limit.
var ErrTooLarge = errors.New("input exceeds size limit")

// DefaultMaxSize bounds a single item.
const DefaultMaxSize = 1 << 30

// Item is one input ready to be loaded.
type Item struct {
	// Name is the base file name used for format detection.
	Name string
	// Location is where the item came from: a path or s3:// URL.
	Location string
	Size     int64
	load     func(ctx context.Context) ([]byte, error)
}

// Load reads the item's bytes.
func (it Item) Load(ctx context.Context) ([]byte, error) {
	if it.load == nil {
		return nil, fmt.Errorf("%s: no loader", it.Location)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return it.load(ctx)
}

// NewItem wraps bytes already in memory.
func NewItem(name string, data []byte) Item {
	return Item{
		Name:     name,
		Location: name,
		Size:     int64(len(data)),
		load:     func(context.Context) ([]byte, error) { return data, nil },
	}
}

// Resolver expands inputs.
type Resolver struct {
	store   ObjectStore
	maxSize int64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithObjectStore enables s3:// inputs.
func WithObjectStore(s ObjectStore) Option {
	return func(r *Resolver) { r.store = s }
}

// WithMaxSize bounds each item.
func WithMaxSize(n int64) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxSize = n
		}
	}
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve expands every argument in order. A named file is taken as is,
// whatever its extension; files found by walking a directory or listing a
// prefix are kept only when their name maps to a known format.
func (r *Resolver) Resolve(ctx context.Context, args []string) ([]Item, error) {
	var items []Item
	for _, arg := range args {
		var (
			found []Item
			err   error
		)
		if strings.HasPrefix(arg, "s3://") {
			found, err = r.objects(ctx, arg)
		} else {
			found, err = r.local(arg)
		}
		if err != nil {
			return nil, err
		}
		items = append(items, found...)
	}
	return items, nil
}

func (r *Resolver) local(arg string) ([]Item, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	if !info.IsDir() {
		return []Item{r.fileItem(arg, info.Size())}, nil
	}

	var items []Item
	err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != arg && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() || format.Detect(d.Name()) == format.Unknown {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		items = append(items, r.fileItem(p, fi.Size()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", arg, err)
	}
	return items, nil
}

func (r *Resolver) fileItem(p string, size int64) Item {
	limit := r.maxSize
	return Item{
		Name:     filepath.Base(p),
		Location: p,
		Size:     size,
		load: func(context.Context) ([]byte, error) {
			if size > limit {
				return nil, fmt.Errorf("%s: %d bytes: %w", p, size, ErrTooLarge)
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("reading file: %w", err)
			}
			return data, nil
		},
	}
}

// ParseS3URL splits s3://bucket/key into its parts. The key may be empty
// or a prefix.
func ParseS3URL(s string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(s, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%q is not an s3:// URL", s)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%q has no bucket", s)
	}
	return bucket, key, nil
}

func (r *Resolver) objects(ctx context.Context, arg string) ([]Item, error) {
	if r.store == nil {
		return nil, fmt.Errorf("%s: object storage is not configured", arg)
	}
	bucket, key, err := ParseS3URL(arg)
	if err != nil {
		return nil, err
	}
	objs, err := r.store.List(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", arg, err)
	}

	var items []Item
	for _, o := range objs {
		if strings.HasSuffix(o.Key, "/") {
			continue
		}
		exact := o.Key == key
		name := o.Key[strings.LastIndexByte(o.Key, '/')+1:]
		if !exact && format.Detect(name) == format.Unknown {
			continue
		}
		items = append(items, r.objectItem(bucket, o, name))
	}
	return items, nil
}

func (r *Resolver) objectItem(bucket string, o ObjectInfo, name string) Item {
	store, limit := r.store, r.maxSize
	loc := "s3://" + bucket + "/" + o.Key
	return Item{
		Name:     name,
		Location: loc,
		Size:     o.Size,
		load: func(ctx context.Context) ([]byte, error) {
			if o.Size > limit {
				return nil, fmt.Errorf("%s: %d bytes: %w", loc, o.Size, ErrTooLarge)
			}
			data, err := store.Get(ctx, bucket, o.Key, limit)
			if err != nil {
				return nil, fmt.Errorf("downloading %s: %w", loc, err)
			}
			return data, nil
		},
	}
}
