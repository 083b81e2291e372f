//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package localization

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"

	"edgexfoundry/app-rssi-localization/internal/aggregation"
)

// DefaultResolution is the default fingerprint grid spacing, in deployment units.
const DefaultResolution = 5.0

const minFingerprintAnchors = 1

// CalibrationSample is one surveyed RSSI reading: the RSSI an anchor reported
// while the target stood at a known position.
type CalibrationSample struct {
	AnchorID string
	TargetX  float64
	TargetY  float64
	AnchorX  float64
	AnchorY  float64
	RSSI     float64
}

// Survey file column names.
const (
	colAnchorID = "monitor_mac"
	colTargetX  = "target_position_x"
	colTargetY  = "target_position_y"
	colAnchorX  = "anchor_position_x"
	colAnchorY  = "anchor_position_y"
	colRSSI     = "rssi"
)

// ReadCalibrationCSV parses a fingerprint survey. The first row must be a header
// naming at least the monitor_mac, target_position_x, target_position_y and rssi
// columns; anchor_position_x/y are read when present and other columns are ignored.
// Anchor IDs are lower-cased.
func ReadCalibrationCSV(r io.Reader) ([]CalibrationSample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read survey header")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colAnchorID, colTargetX, colTargetY, colRSSI} {
		if _, ok := cols[required]; !ok {
			return nil, errors.Errorf("survey is missing column %q", required)
		}
	}

	var samples []CalibrationSample
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read survey")
		}
		line, _ := cr.FieldPos(0)

		field := func(name string) (float64, error) {
			idx, ok := cols[name]
			if !ok {
				return 0, nil
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
			return v, errors.Wrapf(err, "line %d: invalid %s", line, name)
		}

		// anchor IDs are lower-cased on every input path
		s := CalibrationSample{AnchorID: strings.ToLower(strings.TrimSpace(record[cols[colAnchorID]]))}
		if s.AnchorID == "" {
			return nil, errors.Errorf("line %d: empty %s", line, colAnchorID)
		}
		for _, f := range []struct {
			name string
			dst  *float64
		}{
			{colTargetX, &s.TargetX}, {colTargetY, &s.TargetY},
			{colAnchorX, &s.AnchorX}, {colAnchorY, &s.AnchorY},
			{colRSSI, &s.RSSI},
		} {
			if *f.dst, err = field(f.name); err != nil {
				return nil, err
			}
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// Bounds is the axis-aligned rectangle covered by a fingerprint grid.
type Bounds struct {
	Min Point `json:"min" yaml:"min"`
	Max Point `json:"max" yaml:"max"`
}

// IsZero is true if no bounds were configured.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// GridSpec describes the lattice on which fingerprint surfaces are evaluated.
// A zero Bounds is replaced by the bounding box of the surveyed positions.
type GridSpec struct {
	Bounds     Bounds
	Resolution float64
}

func (g GridSpec) Validate() error {
	if !(g.Resolution > 0) || math.IsInf(g.Resolution, 1) {
		return errors.Errorf("grid resolution must be positive, got %v", g.Resolution)
	}
	if g.Bounds.Max.X < g.Bounds.Min.X || g.Bounds.Max.Y < g.Bounds.Min.Y {
		return errors.Errorf("grid bounds are inverted: %+v", g.Bounds)
	}
	return nil
}

// axis returns min, min+step, ... for every value strictly below max,
// followed by max itself.
func axis(min, max, step float64) []float64 {
	n := int(math.Ceil((max - min) / step))
	values := make([]float64, 0, n+1)
	for i := 0; i < n; i++ {
		v := min + float64(i)*step
		if v >= max {
			break
		}
		values = append(values, v)
	}
	return append(values, max)
}

// FingerprintMap holds one interpolated RSSI surface per anchor over a common grid.
// It is immutable once built.
type FingerprintMap struct {
	xs, ys   []float64
	anchors  []string
	surfaces map[string]Grid
	// surveyed holds every distinct calibration position.
	surveyed []Point
}

type surveyKey struct {
	anchorID string
	pos      Point
}

// BuildFingerprintMap groups the samples by (anchor, position), takes the median
// RSSI of each group, fits a linear RBF per anchor through those medians and
// evaluates it at every grid cell.
func BuildFingerprintMap(samples []CalibrationSample, spec GridSpec) (*FingerprintMap, error) {
	if len(samples) == 0 {
		return nil, errors.New("no calibration samples")
	}

	groups := make(map[surveyKey][]float64)
	surveyed := make(map[Point]struct{})
	for _, s := range samples {
		if math.IsNaN(s.RSSI) || math.IsInf(s.RSSI, 0) {
			return nil, errors.Wrapf(ErrDomain, "non-finite RSSI for anchor %s", s.AnchorID)
		}
		pos := Point{X: s.TargetX, Y: s.TargetY}
		k := surveyKey{anchorID: s.AnchorID, pos: pos}
		groups[k] = append(groups[k], s.RSSI)
		surveyed[pos] = struct{}{}
	}

	fm := &FingerprintMap{
		surfaces: make(map[string]Grid),
		surveyed: maps.Keys(surveyed),
	}
	slices.SortFunc(fm.surveyed, comparePoints)

	if spec.Bounds.IsZero() {
		spec.Bounds = boundingBox(fm.surveyed)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	fm.xs = axis(spec.Bounds.Min.X, spec.Bounds.Max.X, spec.Resolution)
	fm.ys = axis(spec.Bounds.Min.Y, spec.Bounds.Max.Y, spec.Resolution)

	perAnchor := make(map[string][]Point)
	for k := range groups {
		perAnchor[k.anchorID] = append(perAnchor[k.anchorID], k.pos)
	}
	fm.anchors = maps.Keys(perAnchor)
	slices.Sort(fm.anchors)

	for _, anchorID := range fm.anchors {
		centers := perAnchor[anchorID]
		slices.SortFunc(centers, comparePoints)
		medians := make([]float64, len(centers))
		for i, c := range centers {
			medians[i] = aggregation.Median(groups[surveyKey{anchorID: anchorID, pos: c}])
		}

		f, err := fitLinearRBF(centers, medians)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to interpolate anchor %s", anchorID)
		}

		surface := newGrid(fm.xs, fm.ys)
		for row, y := range fm.ys {
			for col, x := range fm.xs {
				surface.Values[row][col] = f.At(Point{X: x, Y: y})
			}
		}
		fm.surfaces[anchorID] = surface
	}

	return fm, nil
}

// Anchors returns the sorted IDs of anchors with a surface.
func (fm *FingerprintMap) Anchors() []string {
	return append([]string(nil), fm.anchors...)
}

// Surface returns the interpolated RSSI surface for anchorID.
// The returned Grid shares memory with the map and must not be modified.
func (fm *FingerprintMap) Surface(anchorID string) (Grid, bool) {
	g, ok := fm.surfaces[anchorID]
	return g, ok
}

// nearestSurveyed returns the distance from p to the closest surveyed position.
func (fm *FingerprintMap) nearestSurveyed(p Point) float64 {
	best := math.Inf(1)
	for _, s := range fm.surveyed {
		if d := p.DistanceTo(s); d < best {
			best = d
		}
	}
	return best
}

func comparePoints(a, b Point) int {
	switch {
	case a.X < b.X:
		return -1
	case a.X > b.X:
		return 1
	case a.Y < b.Y:
		return -1
	case a.Y > b.Y:
		return 1
	}
	return 0
}

func boundingBox(points []Point) Bounds {
	b := Bounds{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min.X, b.Max.X = math.Min(b.Min.X, p.X), math.Max(b.Max.X, p.X)
		b.Min.Y, b.Max.Y = math.Min(b.Min.Y, p.Y), math.Max(b.Max.Y, p.Y)
	}
	return b
}

// Fingerprinting estimates position as the grid cell whose interpolated RSSI
// vector is nearest, in Euclidean norm, to the observed one.
type Fingerprinting struct {
	fm *FingerprintMap
}

func NewFingerprinting(fm *FingerprintMap) *Fingerprinting {
	return &Fingerprinting{fm: fm}
}

func (f *Fingerprinting) Algorithm() Algorithm { return FPL }

// Localize returns the cell with the smallest error, taking the first in
// row-major order. Exact ties go to the cell nearest a surveyed position.
func (f *Fingerprinting) Localize(snapshot Snapshot) (Estimate, error) {
	var surfaces []Grid
	var observed []float64
	for _, id := range f.fm.anchors {
		if rssi, ok := snapshot[id]; ok {
			surfaces = append(surfaces, f.fm.surfaces[id])
			observed = append(observed, rssi)
		}
	}
	if err := insufficient(FPL, len(surfaces), minFingerprintAnchors); err != nil {
		return nil, err
	}

	heatmap := newGrid(f.fm.xs, f.fm.ys)
	expected := make([]float64, len(surfaces))
	best := math.Inf(1)
	type cell struct{ row, col int }
	var minima []cell

	for row := range heatmap.Values {
		for col := range heatmap.Values[row] {
			for k, s := range surfaces {
				expected[k] = s.Values[row][col]
			}
			e := floats.Distance(observed, expected, 2)
			heatmap.Values[row][col] = e

			switch {
			case e < best:
				best = e
				minima = append(minima[:0], cell{row, col})
			case e == best && !math.IsInf(e, 1):
				minima = append(minima, cell{row, col})
			}
		}
	}
	if len(minima) == 0 {
		return nil, errors.Wrap(ErrDomain, "no finite match on the fingerprint grid")
	}

	chosen := minima[0]
	if len(minima) > 1 {
		nearest := f.fm.nearestSurveyed(heatmap.PointAt(chosen.row, chosen.col))
		for _, c := range minima[1:] {
			if d := f.fm.nearestSurveyed(heatmap.PointAt(c.row, c.col)); d < nearest {
				nearest, chosen = d, c
			}
		}
	}

	return PositionWithHeatmap{
		At:      heatmap.PointAt(chosen.row, chosen.col),
		Heatmap: heatmap,
	}, nil
}
