package main

import (
	"log/slog"
	"time"

	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/config"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/geo"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/model"
	"github.com/hhhuuunnnggg-design/ThuyetMinhPhoAmThuc/pkg/position"
)

// poiLister is the part of the POI manager the walker route needs.
type poiLister interface {
	POIs() []model.POI
}

// initSensor returns the live sensor, and the stream sensor separately when
// fixes arrive over the control API.
func initSensor(cfg *config.Config, pois poiLister) (position.Sensor, *position.StreamSensor) {
	switch cfg.Position.Sensor {
	case config.SensorStream:
		s := position.NewStreamSensor()
		return s, s
	case config.SensorWalker:
		route := walkerRoute(cfg.Position.Walker.Route, pois)
		if len(route) == 0 {
			slog.Warn("Walker sensor has no route, live mode will report unavailable")
			return nil, nil
		}
		slog.Info("Using walker sensor", "waypoints", len(route), "speed", cfg.Position.Walker.Speed)
		return position.NewWalker(position.WalkerConfig{
			Speed:    cfg.Position.Walker.Speed,
			Interval: time.Duration(cfg.Position.Walker.Interval),
			Dwell:    time.Duration(cfg.Position.Walker.Dwell),
		}, route), nil
	default:
		return nil, nil
	}
}

// walkerRoute uses the configured waypoints, else visits every POI in load order.
func walkerRoute(pairs []config.RoutePair, pois poiLister) []geo.Point {
	if len(pairs) > 0 {
		route := make([]geo.Point, 0, len(pairs))
		for _, p := range pairs {
			route = append(route, geo.Point{Lat: p.Lat, Lon: p.Lon})
		}
		return route
	}
	all := pois.POIs()
	route := make([]geo.Point, 0, len(all))
	for i := range all {
		route = append(route, all[i].Point())
	}
	return route
}
