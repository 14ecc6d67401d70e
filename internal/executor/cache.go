package executor

import (
	"container/list"
	"os"
	"sync"
)

// DownloadCache is an LRU cache of downloaded partition files. Entries are
// keyed by dataset ID and object path, so a rewritten dataset never hits
// files of the previous write. The least recently used files are deleted
// once the total size exceeds the limit.
type DownloadCache struct {
	mu       sync.Mutex
	maxBytes int64
	curBytes int64

	// items maps key → list element (whose value is *cacheEntry)
	items map[string]*list.Element
	order *list.List // front = most recently used
}

type cacheEntry struct {
	key       string
	localPath string
	sizeBytes int64
}

// NewDownloadCache creates a download cache holding at most maxBytes.
func NewDownloadCache(maxBytes int64) *DownloadCache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	return &DownloadCache{
		maxBytes: maxBytes,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

func cacheKey(dataset, objectPath string) string {
	return dataset + "/" + objectPath
}

// Get returns the local path of a cached partition, or "" on a miss.
func (c *DownloadCache) Get(dataset, objectPath string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[cacheKey(dataset, objectPath)]
	if !ok {
		return ""
	}
	entry := elem.Value.(*cacheEntry)

	// File gone or truncated.
	info, err := os.Stat(entry.localPath)
	if err != nil || info.Size() != entry.sizeBytes {
		c.removeLocked(elem)
		return ""
	}

	c.order.MoveToFront(elem)
	return entry.localPath
}

// Put records a downloaded partition, evicting old entries when over the limit.
// The newest entry is kept even if it alone exceeds the limit.
func (c *DownloadCache) Put(dataset, objectPath, localPath string) {
	info, err := os.Stat(localPath)
	if err != nil {
		return
	}
	sizeBytes := info.Size()
	key := cacheKey(dataset, objectPath)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		old := elem.Value.(*cacheEntry)
		c.curBytes -= old.sizeBytes
		old.localPath = localPath
		old.sizeBytes = sizeBytes
		c.curBytes += sizeBytes
		c.order.MoveToFront(elem)
	} else {
		elem := c.order.PushFront(&cacheEntry{key: key, localPath: localPath, sizeBytes: sizeBytes})
		c.items[key] = elem
		c.curBytes += sizeBytes
	}

	for c.curBytes > c.maxBytes && c.order.Len() > 1 {
		c.removeLocked(c.order.Back())
	}
}

// removeLocked drops an entry and deletes its file. Caller must hold c.mu.
func (c *DownloadCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.items, entry.key)
	c.curBytes -= entry.sizeBytes

	os.Remove(entry.localPath)
}

// Size returns the total cached size in bytes.
func (c *DownloadCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Len returns the number of cached entries.
func (c *DownloadCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries and deletes their files.
func (c *DownloadCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.order.Len() > 0 {
		c.removeLocked(c.order.Back())
	}
}
