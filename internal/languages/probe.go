package languages

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/loadgic/loadgic/internal/marker"
)

// Metric is one observed probe firing.
type Metric struct {
	Marker marker.Kind `json:"marker"`
	Line   int         `json:"line"`
	Time   float64     `json:"time"`
	Source string      `json:"source"`
}

var probePattern = regexp.MustCompile(`\[LG:(\w+):(\d+):([\d.]+):([^\]]+)\]`)

// ParseProbe extracts a metric from one line of probe output. Every
// language writes the same line format, so l only selects the channel the
// line came from and does not change the pattern.
func (l Language) ParseProbe(line string) (Metric, bool) {
	return ParseProbeLine(line)
}

// ParseProbeLine matches [LG:<KIND>:<line>:<timestamp>:<source>] anywhere in
// line.
func ParseProbeLine(line string) (Metric, bool) {
	match := probePattern.FindStringSubmatch(line)
	if match == nil {
		return Metric{}, false
	}
	kind, ok := marker.ParseCode(match[1])
	if !ok {
		return Metric{}, false
	}
	lineNum, err := strconv.Atoi(match[2])
	if err != nil {
		return Metric{}, false
	}
	ts, err := strconv.ParseFloat(strings.TrimSuffix(match[3], "."), 64)
	if err != nil {
		return Metric{}, false
	}
	source := match[4]
	if source == "" {
		source = "unknown"
	}
	return Metric{Marker: kind, Line: lineNum, Time: ts, Source: source}, true
}
