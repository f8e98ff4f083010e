package poi

import "errors"

var (
	// ErrNotFound indicates the requested POI is not in the loaded set.
	ErrNotFound = errors.New("poi not found")
	// ErrSourceUnavailable indicates neither the source nor the offline snapshot produced a POI set.
	ErrSourceUnavailable = errors.New("poi source unavailable")
)
