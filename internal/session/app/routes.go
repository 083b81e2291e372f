//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package sessionapp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"edgexfoundry/app-rssi-localization/internal/observation"
)

const (
	apiBase        = "/api/v1"
	pingRoute      = apiBase + "/ping"
	anchorsRoute   = apiBase + "/anchors"
	targetsRoute   = apiBase + "/targets"
	estimatesRoute = apiBase + "/estimates"
	estimateRoute  = apiBase + "/estimates/{target}"
	wsRoute        = apiBase + "/ws"
)

func (app *App) addRoutes() error {
	if err := app.addRoute(
		pingRoute, http.MethodGet, app.ping); err != nil {
		return err
	}
	if err := app.addRoute(
		anchorsRoute, http.MethodGet, app.getAnchors); err != nil {
		return err
	}
	if err := app.addRoute(
		targetsRoute, http.MethodGet, app.getTargets); err != nil {
		return err
	}
	if err := app.addRoute(
		estimatesRoute, http.MethodGet, app.getEstimates); err != nil {
		return err
	}
	if err := app.addRoute(
		estimateRoute, http.MethodGet, app.getTargetEstimates); err != nil {
		return err
	}
	if err := app.addRoute(
		wsRoute, http.MethodGet, app.hub.ServeHTTP); err != nil {
		return err
	}

	return nil
}

func (app *App) addRoute(path, method string, f http.HandlerFunc) error {
	if err := app.routes.AddRoute(path, f, method); err != nil {
		return errors.Wrapf(err, "failed to add route, path=%s, method=%s", path, method)
	}
	return nil
}

// Routes
func (app *App) ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("pong")); err != nil {
		app.lc.Error("Error writing pong response.", "error", err.Error())
	}
}

func (app *App) getAnchors(w http.ResponseWriter, _ *http.Request) {
	app.writeJSON(w, "anchors", app.deployment.Anchors)
}

// getTargets writes the current aggregated RSSI of every target, by anchor.
func (app *App) getTargets(w http.ResponseWriter, _ *http.Request) {
	now := observation.ToSeconds(time.Now())
	app.writeJSON(w, "targets", app.session.Registry().SnapshotAll(now))
}

func (app *App) getEstimates(w http.ResponseWriter, _ *http.Request) {
	app.writeJSON(w, "estimates", app.board.Latest())
}

func (app *App) getTargetEstimates(w http.ResponseWriter, req *http.Request) {
	rv := mux.Vars(req)
	target := rv["target"]

	results, found := app.board.ForTarget(target)
	if !found {
		msg := fmt.Sprintf("No estimates for target: %v", target)
		app.lc.Debug(msg)
		http.Error(w, msg, http.StatusNotFound)
		return
	}
	app.writeJSON(w, "estimates", results)
}

func (app *App) writeJSON(w http.ResponseWriter, what string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		msg := fmt.Sprintf("Failed to marshal %s: %v", what, err)
		app.lc.Error(msg)
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		app.lc.Error(fmt.Sprintf("Failed to write %s: %v", what, err))
	}
}
