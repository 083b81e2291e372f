//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package sessionapp

import (
	"context"
	"encoding/json"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/models"
	"github.com/pkg/errors"

	"edgexfoundry/app-rssi-localization/internal/session"
)

const (
	// ResourcePositionEstimate prefixes the reading name of published estimates;
	// the algorithm name completes it, e.g. PositionEstimateTLSL.
	ResourcePositionEstimate = "PositionEstimate"

	publishQueueSz = 100
)

// coreDataPusher is implemented by the SDK's appcontext.Context.
type coreDataPusher interface {
	PushToCoreData(deviceName string, readingName string, value interface{}) (*models.Event, error)
}

// coreDataPublisher is a session.Sink which forwards estimates to core-data.
//
// Publish only queues the Result; run does the pushing,
// so a slow core-data never holds up the update loop.
type coreDataPublisher struct {
	lc      logger.LoggingClient
	pusher  func() coreDataPusher
	results chan session.Result
}

func newCoreDataPublisher(lc logger.LoggingClient, pusher func() coreDataPusher) *coreDataPublisher {
	return &coreDataPublisher{
		lc:      lc,
		pusher:  pusher,
		results: make(chan session.Result, publishQueueSz),
	}
}

func (p *coreDataPublisher) Publish(r session.Result) {
	select {
	case p.results <- r:
	default:
		p.lc.Warn("Core-data publish queue is full; dropping estimate.",
			"target", r.TargetID, "algorithm", string(r.Algorithm))
	}
}

func (p *coreDataPublisher) run(ctx context.Context) {
	p.lc.Info("Starting core-data publisher.")
	for {
		select {
		case <-ctx.Done():
			p.lc.Info("Core-data publisher stopped.")
			return
		case r := <-p.results:
			if err := p.push(r); err != nil {
				p.lc.Error("Failed to push estimate to core-data.", "error", err.Error())
			}
		}
	}
}

func (p *coreDataPublisher) push(r session.Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "error marshalling estimate")
	}

	pusher := p.pusher()
	if pusher == nil {
		return errors.New("app-functions-sdk context has not been grabbed yet")
	}

	resource := ResourcePositionEstimate + string(r.Algorithm)
	p.lc.Trace("Sending position estimate.", "type", resource, "payload", string(payload))
	_, err = pusher.PushToCoreData(serviceKey, resource, string(payload))
	return errors.Wrapf(err, "unable to push %s to core-data", resource)
}
