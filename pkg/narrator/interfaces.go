package narrator

import (
	"context"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/gate"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/position"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/telemetry"
)

// POIProvider supplies the loaded POI set.
type POIProvider interface {
	POIs() []model.POI
	Get(id int64) (model.POI, error)
}

// PositionFeed is a cancellable position subscription.
type PositionFeed interface {
	Subscribe(ctx context.Context) <-chan position.Event
}

// Gatekeeper decides whether automatic playback may start.
type Gatekeeper interface {
	Allow(ctx context.Context, req gate.Request) bool
}

// IdentityProvider returns the persisted device id.
type IdentityProvider interface {
	DeviceID(ctx context.Context) (string, error)
}

// Reporter delivers playback telemetry without blocking.
type Reporter interface {
	Report(e telemetry.Entry)
	Wait()
}

// Settings holds the runtime switches the engine reads.
type Settings interface {
	AutoGuide(ctx context.Context) bool
}
