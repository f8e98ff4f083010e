package poi

import (
	"context"
	"fmt"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/request"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/store"
)

// Source fetches the narration catalogue in bulk.
type Source interface {
	Fetch(ctx context.Context) ([]model.AudioAsset, error)
}

// HTTPSource reads the catalogue from the narration backend.
type HTTPSource struct {
	client *request.Client
	url    string
}

// NewHTTPSource creates a source for the catalogue endpoint at url.
func NewHTTPSource(c *request.Client, url string) *HTTPSource {
	return &HTTPSource{client: c, url: url}
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]model.AudioAsset, error) {
	body, err := s.client.Get(ctx, s.url, "")
	if err != nil {
		return nil, fmt.Errorf("fetch catalogue: %w", err)
	}
	assets, err := request.DecodeJSON[[]model.AudioAsset](body)
	if err != nil {
		return nil, fmt.Errorf("decode catalogue: %w", err)
	}
	return assets, nil
}

// StoreSource reads the catalogue from the local database.
type StoreSource struct {
	store store.AudioStore
}

func NewStoreSource(s store.AudioStore) *StoreSource {
	return &StoreSource{store: s}
}

func (s *StoreSource) Fetch(ctx context.Context) ([]model.AudioAsset, error) {
	return s.store.ListAudios(ctx)
}

// ShapefileSource reads point features from a shapefile on every fetch.
type ShapefileSource struct {
	path string
}

func NewShapefileSource(path string) *ShapefileSource {
	return &ShapefileSource{path: path}
}

func (s *ShapefileSource) Fetch(ctx context.Context) ([]model.AudioAsset, error) {
	return LoadShapefile(s.path)
}
