//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package sessionapp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgexfoundry/app-functions-sdk-go/appcontext"
	"github.com/edgexfoundry/go-mod-core-contracts/models"
	"github.com/pkg/errors"

	"edgexfoundry/app-rssi-localization/internal/logutil"
	"edgexfoundry/app-rssi-localization/internal/observation"
	"edgexfoundry/app-rssi-localization/internal/session"
)

// contextGrabber does what it sounds like, it grabs the app-functions-sdk's appcontext.Context.
// The core-data publisher needs it, and it isn't available outside a pipeline.
func (app *App) contextGrabber(edgexContext *appcontext.Context, params ...interface{}) (bool, interface{}) {
	app.ctxMu.Lock()
	if app.edgexSdkContext == nil {
		app.edgexSdkContext = edgexContext
		app.lc.Debug("Grabbed app-functions-sdk context.")
	}
	app.ctxMu.Unlock()

	if len(params) < 1 {
		return false, errors.New("no event received")
	}

	existingEvent, ok := params[0].(models.Event)
	if !ok {
		return false, errors.New("type received is not an Event")
	}

	return true, existingEvent
}

// pusher returns the grabbed SDK context, or nil if no event has passed
// through the pipeline yet.
func (app *App) pusher() coreDataPusher {
	app.ctxMu.RLock()
	defer app.ctxMu.RUnlock()
	if app.edgexSdkContext == nil {
		return nil
	}
	return app.edgexSdkContext
}

// processEdgeXEvent is the last pipeline function. After the SDK filter passes
// only RSSIObservation readings, it converts each one into an Observation
// and hands it to the session. It never waits on localization.
func (app *App) processEdgeXEvent(_ *appcontext.Context, params ...interface{}) (bool, interface{}) {
	if len(params) < 1 {
		return false, errors.New("processEdgeXEvent: no event received")
	}

	event, ok := params[0].(models.Event)
	if !ok {
		return false, errors.New("processEdgeXEvent: didn't receive expected Event type")
	}

	observations, errs := observation.FromEvent(event, time.Now())
	for _, err := range errs {
		app.lc.Warn("Dropping RSSI reading.", "device", event.Device, "error", err.Error())
	}

	for _, obs := range observations {
		app.session.Ingest(obs)
		app.lc.Trace("New RSSI observation.",
			"anchor", obs.AnchorID, "target", obs.TargetID, "rssi", obs.RSSI)
	}

	return false, nil
}

// taskLoop runs everything outside the SDK's pipeline: the localization
// update loop, the optional observation source and core-data publisher,
// and configuration changes from consul.
func (app *App) taskLoop(ctx context.Context) {
	lgr := logutil.LogWrap{LoggingClient: app.lc}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := app.session.Run(ctx)
		lgr.ErrIf(err != nil, "Update loop failed.", logutil.KeyValue{Key: "error", Val: err})
	}()

	if app.publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.publisher.run(ctx)
		}()
	}

	if app.source != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.lc.Info("Starting observation source.", "source", app.config.IngestSource)
			err := app.source.Run(ctx, app.session.Ingest)
			lgr.ErrIf(err != nil, "Observation source failed.", logutil.KeyValue{Key: "error", Val: err})
			app.lc.Info("Observation source stopped.", "source", app.config.IngestSource)
		}()
	}

	app.lc.Info("Starting task loop.")
	for {
		select {
		case <-ctx.Done():
			app.lc.Info("Stopping task loop.")
			app.hub.Close()
			wg.Wait()
			app.lc.Info("Task loop stopped.")
			return

		case rawConfig := <-app.confUpdateCh:
			app.updateConfig(ctx, rawConfig)

		case err := <-app.confErrCh:
			lgr.WarnIfErr(err, "Configuration watch failed.")
		}
	}
}

// updateConfig hands the hot-reloadable part of a consul update to the session.
// Everything else requires a restart.
func (app *App) updateConfig(ctx context.Context, rawConfig interface{}) {
	newConfig, ok := rawConfig.(*session.ApplicationSettings)
	if !ok {
		app.lc.Warn("Unable to decode configuration from consul.", "raw", fmt.Sprintf("%#v", rawConfig))
		return
	}

	ls := newConfig.LoopSettings()
	if err := ls.Validate(); err != nil {
		app.lc.Error("Invalid Consul configuration.", "error", err.Error())
		return
	}

	app.lc.Info("Configuration updated from consul.")
	app.lc.Debug("New consul config.", "config", fmt.Sprintf("%+v", newConfig))
	if err := app.session.Reconfigure(ctx, ls); err != nil {
		app.lc.Warn("Failed to apply configuration.", "error", err.Error())
	}
}
