package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	dserr "github.com/arkilian/pqdataset/internal/errors"
	"github.com/arkilian/pqdataset/internal/graph"
	"github.com/arkilian/pqdataset/internal/storage"
)

// partitionFile is one partition object of one dataset write.
type partitionFile struct {
	dataset string
	object  string
	// size recorded in metadata; 0 when unknown
	size int64
}

func fileOf(t *graph.ReadPartition) partitionFile {
	return partitionFile{dataset: t.Dataset, object: t.Object, size: t.Size}
}

// downloader copies remote partition files to dir/<dataset>/<object>. Every
// write of a dataset gets its own directory, so a rewrite never picks up files
// of an earlier one. Downloads land under a temporary name and are renamed
// once their size matches the metadata, so a file at its final path is
// always complete.
type downloader struct {
	storage     storage.ObjectStorage
	dir         string
	concurrency int
	flights     singleflight.Group
}

type downloadStats struct {
	downloads int64
	reused    int64
}

func newDownloader(st storage.ObjectStorage, dir string, concurrency int) *downloader {
	return &downloader{storage: st, dir: dir, concurrency: concurrency}
}

// path returns where f is kept locally. Separators are flattened so equal base
// names under different prefixes do not collide, and ".." is removed so the
// result cannot leave the download directory.
func (d *downloader) path(f partitionFile) string {
	return filepath.Join(d.dir, flatten(f.dataset), flatten(f.object))
}

func flatten(name string) string {
	name = strings.ReplaceAll(strings.TrimPrefix(name, "/"), "/", "_")
	return strings.ReplaceAll(name, "..", "_")
}

// fetch returns the local path of f, downloading it unless a complete copy is
// already on disk. Concurrent fetches of one file share a single download.
func (d *downloader) fetch(ctx context.Context, f partitionFile) (string, bool, error) {
	local := d.path(f)
	v, err, _ := d.flights.Do(local, func() (interface{}, error) {
		if complete(local, f.size) {
			return true, nil
		}
		return false, d.download(ctx, f, local)
	})
	if err != nil {
		return "", false, err
	}
	return local, v.(bool), nil
}

// fetchAll fetches files with at most concurrency downloads in flight. Files
// are started in order, so the first ones are ready first. The returned paths
// line up with files.
func (d *downloader) fetchAll(ctx context.Context, files []partitionFile) ([]string, downloadStats, error) {
	paths := make([]string, len(files))
	var downloads, reused atomic.Int64

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(d.concurrency)
	for i, f := range files {
		eg.Go(func() error {
			p, hit, err := d.fetch(ctx, f)
			if err != nil {
				return dserr.NewPartitionIOError(d.storage.Location(f.object), "failed to fetch partition", err)
			}
			paths[i] = p
			if hit {
				reused.Add(1)
			} else {
				downloads.Add(1)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, downloadStats{}, err
	}
	return paths, downloadStats{downloads: downloads.Load(), reused: reused.Load()}, nil
}

func (d *downloader) download(ctx context.Context, f partitionFile, local string) error {
	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(local), "."+filepath.Base(local)+"."+uuid.NewString())
	if err := d.storage.Download(ctx, f.object, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if f.size > 0 {
		info, err := os.Stat(tmp)
		if err != nil {
			os.Remove(tmp)
			return err
		}
		if info.Size() != f.size {
			os.Remove(tmp)
			return fmt.Errorf("downloaded %d bytes, metadata records %d", info.Size(), f.size)
		}
	}
	if err := os.Rename(tmp, local); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

func complete(local string, size int64) bool {
	info, err := os.Stat(local)
	return err == nil && !info.IsDir() && (size <= 0 || info.Size() == size)
}
