package probe

import (
	"context"
	"errors"
	"fmt"
)

// Getter is the part of the request client the backend probe needs.
type Getter interface {
	Get(ctx context.Context, u, cacheKey string) ([]byte, error)
}

// Counter reports how many POIs are loaded.
type Counter interface {
	Count() int
}

// ErrNoPOIs is reported when the POI set is empty.
var ErrNoPOIs = errors.New("no POIs with coordinates loaded")

// Backend checks that url answers. The response is never cached.
func Backend(c Getter, url string, critical bool) Probe {
	return Probe{
		Name: "Backend",
		Check: func(ctx context.Context) error {
			if _, err := c.Get(ctx, url, ""); err != nil {
				return fmt.Errorf("backend unreachable: %w", err)
			}
			return nil
		},
		Critical: critical,
	}
}

// POISet checks that at least one POI can take part in geofencing.
// An empty set is a safe degradation, so the probe is never critical.
func POISet(c Counter) Probe {
	return Probe{
		Name: "POI set",
		Check: func(ctx context.Context) error {
			if c.Count() == 0 {
				return ErrNoPOIs
			}
			return nil
		},
	}
}
