package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Day and Week extend time.ParseDuration for retention settings such as "90d".
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// Duration is a time.Duration read from YAML strings like "5m", "90d" or "1w2d".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// ParseDuration accepts everything time.ParseDuration does plus d and w terms.
// An empty string is zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.ContainsAny(s, "dw") {
		return time.ParseDuration(s)
	}

	var total time.Duration
	rest := s
	for rest != "" {
		numEnd := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsDigit(r) && r != '.' })
		if numEnd <= 0 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		unitEnd := strings.IndexFunc(rest[numEnd:], func(r rune) bool { return unicode.IsDigit(r) || r == '.' })
		if unitEnd < 0 {
			unitEnd = len(rest) - numEnd
		}
		num, unit := rest[:numEnd], rest[numEnd:numEnd+unitEnd]
		rest = rest[numEnd+unitEnd:]

		var base time.Duration
		switch unit {
		case "d":
			base = Day
		case "w":
			base = Week
		default:
			part, err := time.ParseDuration(num + unit)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %w", s, err)
			}
			total += part
			continue
		}
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total += time.Duration(v * float64(base))
	}
	return total, nil
}

// Distance is a length in meters, read from YAML as 50, "50m" or "0.2km".
type Distance float64

func (d *Distance) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if err := value.Decode(&f); err == nil {
		if f < 0 {
			return fmt.Errorf("negative distance %v", f)
		}
		*d = Distance(f)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	m, err := ParseDistance(s)
	if err != nil {
		return err
	}
	*d = Distance(m)
	return nil
}

func (d Distance) MarshalYAML() (interface{}, error) {
	return strconv.FormatFloat(float64(d), 'f', -1, 64) + "m", nil
}

// ParseDistance converts "120", "120m" or "1.5km" to meters. Negative lengths are rejected.
func ParseDistance(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "km"):
		mult, s = 1000, strings.TrimSuffix(s, "km")
	case strings.HasSuffix(s, "m"):
		s = strings.TrimSuffix(s, "m")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid distance %q: %w", s, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative distance %v", v)
	}
	return v * mult, nil
}
