package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		p1   Point
		p2   Point
		want float64
	}{
		{
			name: "Same Point",
			p1:   Point{Lat: 10.7769, Lon: 106.7009},
			p2:   Point{Lat: 10.7769, Lon: 106.7009},
			want: 0,
		},
		{
			name: "Hanoi to Ho Chi Minh City",
			p1:   Point{Lat: 21.0285, Lon: 105.8542},
			p2:   Point{Lat: 10.8231, Lon: 106.6297},
			want: 1137000, // Approx 1137km
		},
		{
			name: "Equator 1 degree",
			p1:   Point{Lat: 0, Lon: 0},
			p2:   Point{Lat: 0, Lon: 1},
			want: 111195, // R * pi / 180
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.p1, tt.p2)
			if tt.want == 0 {
				if got != 0 {
					t.Errorf("Distance() = %v, want exactly 0", got)
				}
				return
			}
			margin := tt.want * 0.01
			if math.Abs(got-tt.want) > margin {
				t.Errorf("Distance() = %v, want %v (+/- %v)", got, tt.want, margin)
			}
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]Point{
		{{Lat: 10.0, Lon: 106.0}, {Lat: 10.00009, Lon: 106.0}},
		{{Lat: -33.8688, Lon: 151.2093}, {Lat: 51.5074, Lon: -0.1278}},
		{{Lat: 89.9, Lon: 0}, {Lat: -89.9, Lon: 179.9}},
		{{Lat: 0.123456789, Lon: -179.999}, {Lat: -0.987654321, Lon: 179.999}},
	}
	for _, p := range pairs {
		ab := Distance(p[0], p[1])
		ba := Distance(p[1], p[0])
		if ab != ba {
			t.Errorf("Distance not symmetric for %v: %v vs %v", p, ab, ba)
		}
		if Distance(p[0], p[0]) != 0 {
			t.Errorf("Distance(a, a) != 0 for %v", p[0])
		}
	}
}

func TestDistance_NaNPropagates(t *testing.T) {
	got := Distance(Point{Lat: math.NaN(), Lon: 0}, Point{Lat: 0, Lon: 0})
	if !math.IsNaN(got) {
		t.Errorf("expected NaN, got %v", got)
	}
}

func TestDestinationPoint_RoundTrip(t *testing.T) {
	start := Point{Lat: 10.0, Lon: 106.0}
	for _, bearing := range []float64{0, 45, 90, 180, 270} {
		dest := DestinationPoint(start, 200, bearing)
		d := Distance(start, dest)
		if math.Abs(d-200) > 0.01 {
			t.Errorf("bearing %v: distance = %v, want 200", bearing, d)
		}
		if bearing == 0 || bearing == 90 {
			b := Bearing(start, dest)
			if math.Abs(b-bearing) > 0.1 {
				t.Errorf("Bearing() = %v, want %v", b, bearing)
			}
		}
	}
}

func TestBounds(t *testing.T) {
	if _, ok := Bounds(nil, 0.0005); ok {
		t.Fatal("expected ok=false for empty input")
	}

	r, ok := Bounds([]Point{
		{Lat: 10.0, Lon: 106.0},
		{Lat: 10.002, Lon: 105.999},
	}, 0.0005)
	if !ok {
		t.Fatal("expected ok=true")
	}

	const eps = 1e-9
	check := func(name string, got, want float64) {
		if math.Abs(got-want) > eps {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	check("MinLat", r.MinLat, 9.9995)
	check("MaxLat", r.MaxLat, 10.0025)
	check("MinLon", r.MinLon, 105.9985)
	check("MaxLon", r.MaxLon, 106.0005)

	if !r.Contains(Point{Lat: 10.001, Lon: 106.0}) {
		t.Error("expected range to contain interior point")
	}
	if r.Contains(Point{Lat: 11, Lon: 106}) {
		t.Error("expected range to exclude distant point")
	}
}

func TestPoint_Valid(t *testing.T) {
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{Lat: 10.7769, Lon: 106.7009}, true},
		{Point{Lat: 0, Lon: 0}, true},
		{Point{Lat: -90, Lon: 180}, true},
		{Point{Lat: 90.1, Lon: 0}, false},
		{Point{Lat: 0, Lon: -180.5}, false},
		{Point{Lat: math.NaN(), Lon: 0}, false},
		{Point{Lat: 0, Lon: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.p, got, tt.want)
		}
	}
}
