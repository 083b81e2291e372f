//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package evaluation scores localization algorithms against a fingerprint
// survey, where every surveyed position is a known ground truth.
package evaluation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"

	"edgexfoundry/app-rssi-localization/internal/aggregation"
	"edgexfoundry/app-rssi-localization/internal/localization"
	"edgexfoundry/app-rssi-localization/internal/pathloss"
)

// Position is the survey at one ground truth position,
// reduced to the median RSSI of each anchor.
type Position struct {
	Truth    localization.Point
	Snapshot localization.Snapshot
}

// Positions groups survey samples by target position. The result is ordered
// by x, then y.
func Positions(samples []localization.CalibrationSample) []Position {
	type key struct {
		pos      localization.Point
		anchorID string
	}
	groups := make(map[key][]float64)
	for _, s := range samples {
		k := key{pos: localization.Point{X: s.TargetX, Y: s.TargetY}, anchorID: s.AnchorID}
		groups[k] = append(groups[k], s.RSSI)
	}

	byPos := make(map[localization.Point]localization.Snapshot)
	for k, rssis := range groups {
		snap, ok := byPos[k.pos]
		if !ok {
			snap = make(localization.Snapshot)
			byPos[k.pos] = snap
		}
		snap[k.anchorID] = aggregation.Median(rssis)
	}

	truths := maps.Keys(byPos)
	slices.SortFunc(truths, func(a, b localization.Point) int {
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
	})

	positions := make([]Position, len(truths))
	for i, p := range truths {
		positions[i] = Position{Truth: p, Snapshot: byPos[p]}
	}
	return positions
}

// Outcome is the result of one algorithm at one position.
type Outcome struct {
	Estimate localization.Point
	Error    float64
	Err      error
}

// PositionResult holds every algorithm's outcome at one position.
type PositionResult struct {
	Truth    localization.Point
	Outcomes map[localization.Algorithm]Outcome
}

// Summary aggregates the errors of one algorithm over every position it could localize.
type Summary struct {
	Algorithm localization.Algorithm
	Count     int
	Failed    int
	Sum       float64
	Mean      float64
	Median    float64
	Max       float64
}

type Report struct {
	Algorithms []localization.Algorithm
	Positions  []PositionResult
	Summaries  []Summary
}

// Run localizes every position with every localizer and summarizes the
// Euclidean error of each algorithm.
func Run(positions []Position, localizers []localization.Localizer) (*Report, error) {
	if len(positions) == 0 {
		return nil, errors.New("nothing to evaluate")
	}
	if len(localizers) == 0 {
		return nil, errors.New("no algorithms to evaluate")
	}

	report := &Report{Positions: make([]PositionResult, len(positions))}
	errs := make(map[localization.Algorithm][]float64)
	failed := make(map[localization.Algorithm]int)
	for _, loc := range localizers {
		report.Algorithms = append(report.Algorithms, loc.Algorithm())
	}

	for i, pos := range positions {
		pr := PositionResult{
			Truth:    pos.Truth,
			Outcomes: make(map[localization.Algorithm]Outcome, len(localizers)),
		}
		for _, loc := range localizers {
			alg := loc.Algorithm()
			est, err := loc.Localize(pos.Snapshot)
			if err != nil {
				pr.Outcomes[alg] = Outcome{Err: err}
				failed[alg]++
				continue
			}

			p := est.Position()
			e := p.DistanceTo(pos.Truth)
			pr.Outcomes[alg] = Outcome{Estimate: p, Error: e}
			errs[alg] = append(errs[alg], e)
		}
		report.Positions[i] = pr
	}

	for _, alg := range report.Algorithms {
		s := Summary{Algorithm: alg, Count: len(errs[alg]), Failed: failed[alg]}
		if s.Count > 0 {
			s.Sum = floats.Sum(errs[alg])
			s.Mean = s.Sum / float64(s.Count)
			s.Median = aggregation.Median(errs[alg])
			s.Max = floats.Max(errs[alg])
		}
		report.Summaries = append(report.Summaries, s)
	}

	return report, nil
}

// WriteSummary writes a table with one row per algorithm.
func (r *Report) WriteSummary(w io.Writer) {
	tbl := table.New("ALGORITHM", "POSITIONS", "FAILED", "SUM", "MEAN", "MEDIAN", "MAX").WithWriter(w)
	for _, s := range r.Summaries {
		tbl.AddRow(s.Algorithm, s.Count, s.Failed, formatFloat(s.Sum), formatFloat(s.Mean),
			formatFloat(s.Median), formatFloat(s.Max))
	}
	tbl.Print()
}

// WritePositions writes a table with the error of every algorithm at every position.
func (r *Report) WritePositions(w io.Writer) {
	headers := []interface{}{"TRUTH"}
	for _, alg := range r.Algorithms {
		headers = append(headers, string(alg))
	}

	tbl := table.New(headers...).WithWriter(w)
	for _, pr := range r.Positions {
		row := []interface{}{fmt.Sprintf("(%s, %s)", formatFloat(pr.Truth.X), formatFloat(pr.Truth.Y))}
		for _, alg := range r.Algorithms {
			if o := pr.Outcomes[alg]; o.Err != nil {
				row = append(row, "-")
			} else {
				row = append(row, formatFloat(o.Error))
			}
		}
		tbl.AddRow(row...)
	}
	tbl.Print()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}

// ReadPathLossCSV reads a path-loss calibration recording. The header must name
// distance (meters) and rssi columns; other columns are ignored.
func ReadPathLossCSV(r io.Reader) ([]pathloss.CalibrationSample, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read calibration header")
	}
	distCol, rssiCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "distance":
			distCol = i
		case "rssi":
			rssiCol = i
		}
	}
	if distCol < 0 || rssiCol < 0 {
		return nil, errors.New("calibration must have distance and rssi columns")
	}

	var samples []pathloss.CalibrationSample
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read calibration")
		}
		line, _ := cr.FieldPos(0)

		d, err := strconv.ParseFloat(strings.TrimSpace(record[distCol]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid distance", line)
		}
		rssi, err := strconv.ParseFloat(strings.TrimSpace(record[rssiCol]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: invalid rssi", line)
		}
		samples = append(samples, pathloss.CalibrationSample{DistanceM: d, RSSI: rssi})
	}
	return samples, nil
}
