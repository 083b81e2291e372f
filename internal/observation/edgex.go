//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package observation

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/models"
	"github.com/pkg/errors"
)

// ResourceRSSIObservation is the EdgeX reading name carrying observations.
const ResourceRSSIObservation = "RSSIObservation"

// readingValue is the JSON form of an RSSIObservation reading value.
type readingValue struct {
	TargetID string   `json:"target_id"`
	RSSI     *float64 `json:"rssi"`
}

// FromReading decodes an RSSIObservation reading.
//
// The reading's device is the anchor. Its value is either a JSON object with
// target_id and rssi, or a raw monitor line, in which case the anchor named in
// the line wins. The reading's origin (nanoseconds) becomes the timestamp;
// readings without one are stamped with now.
func FromReading(reading models.Reading, now time.Time) (Observation, error) {
	ts := ToSeconds(now)
	if reading.Origin > 0 {
		ts = float64(reading.Origin) / float64(time.Second)
	}

	value := strings.TrimSpace(reading.Value)
	if !strings.HasPrefix(value, "{") {
		return ParseLine(value, ts)
	}

	var rv readingValue
	decoder := json.NewDecoder(bytes.NewBufferString(value))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&rv); err != nil {
		return Observation{}, &MalformedObservationError{Line: value, Reason: err.Error()}
	}

	switch {
	case reading.Device == "":
		return Observation{}, &MalformedObservationError{Line: value, Reason: "reading has no device"}
	case rv.TargetID == "":
		return Observation{}, &MalformedObservationError{Line: value, Reason: "missing target_id"}
	case rv.RSSI == nil:
		return Observation{}, &MalformedObservationError{Line: value, Reason: "missing rssi"}
	}

	return Observation{
		AnchorID:  strings.ToLower(reading.Device),
		TargetID:  strings.ToLower(rv.TargetID),
		RSSI:      *rv.RSSI,
		Timestamp: ts,
	}, nil
}

// ErrNoReadings is returned for events without any readings.
var ErrNoReadings = errors.New("event contains no readings")

// FromEvent decodes every RSSIObservation reading of event. Malformed readings
// are returned as errors alongside the observations which could be decoded.
func FromEvent(event models.Event, now time.Time) ([]Observation, []error) {
	if len(event.Readings) == 0 {
		return nil, []error{ErrNoReadings}
	}

	var obs []Observation
	var errs []error
	for i := range event.Readings {
		reading := &event.Readings[i]
		if reading.Name != ResourceRSSIObservation {
			continue
		}
		o, err := FromReading(*reading, now)
		if err != nil {
			errs = append(errs, errors.Wrapf(err, "device %s", reading.Device))
			continue
		}
		obs = append(obs, o)
	}
	return obs, errs
}
