package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/request"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
)

// ErrClipNotFound is returned when an audio id has no clip.
var ErrClipNotFound = errors.New("audio clip not found")

// Fetcher loads the bytes of one clip.
type Fetcher interface {
	Fetch(ctx context.Context, audioID int64) ([]byte, error)
}

// CacheKey is the response cache key for a clip.
func CacheKey(audioID int64) string {
	return "audio:" + strconv.FormatInt(audioID, 10)
}

// HTTPFetcher downloads clips from the audio-by-id endpoint.
type HTTPFetcher struct {
	client *request.Client
	urlFor func(int64) string
	cache  bool
}

// NewHTTPFetcher creates an HTTPFetcher. With cache set, clips are kept in the
// request client's response cache under CacheKey.
func NewHTTPFetcher(c *request.Client, urlFor func(int64) string, cache bool) *HTTPFetcher {
	return &HTTPFetcher{client: c, urlFor: urlFor, cache: cache}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, audioID int64) ([]byte, error) {
	key := ""
	if f.cache {
		key = CacheKey(audioID)
	}
	data, err := f.client.Get(ctx, f.urlFor(audioID), key)
	if err != nil {
		var se *request.StatusError
		if errors.As(err, &se) && se.Code == 404 {
			return nil, fmt.Errorf("%w: %d", ErrClipNotFound, audioID)
		}
		return nil, err
	}
	return data, nil
}

// FileFetcher reads clips from a directory, locating them through the catalogue.
type FileFetcher struct {
	dir   string
	store store.AudioStore
}

// NewFileFetcher creates a FileFetcher rooted at dir.
func NewFileFetcher(dir string, st store.AudioStore) *FileFetcher {
	return &FileFetcher{dir: dir, store: st}
}

// Path returns the clip file and mime type for audioID.
func (f *FileFetcher) Path(ctx context.Context, audioID int64) (path, mimeType string, err error) {
	a, err := f.store.GetAudio(ctx, audioID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", "", fmt.Errorf("%w: %d", ErrClipNotFound, audioID)
		}
		return "", "", err
	}
	if a.FileName == "" {
		return "", "", fmt.Errorf("%w: %d has no file", ErrClipNotFound, audioID)
	}
	// Catalogue file names are relative to the audio directory
	name := filepath.Base(filepath.Clean(a.FileName))
	mimeType = a.MimeType
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	return filepath.Join(f.dir, name), mimeType, nil
}

// Fetch implements Fetcher.
func (f *FileFetcher) Fetch(ctx context.Context, audioID int64) ([]byte, error) {
	path, _, err := f.Path(ctx, audioID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrClipNotFound, path)
		}
		return nil, err
	}
	return data, nil
}
