//
// Copyright (C) 2020, 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package sessionapp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/edgexfoundry/app-functions-sdk-go/appcontext"
	"github.com/edgexfoundry/app-functions-sdk-go/appsdk"
	"github.com/edgexfoundry/app-functions-sdk-go/pkg/transforms"
	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/pkg/errors"

	"edgexfoundry/app-rssi-localization/internal/aggregation"
	"edgexfoundry/app-rssi-localization/internal/localization"
	"edgexfoundry/app-rssi-localization/internal/logutil"
	"edgexfoundry/app-rssi-localization/internal/observation"
	"edgexfoundry/app-rssi-localization/internal/session"
)

const (
	serviceKey = "app-rssi-localization"
)

// routeAdder registers REST handlers; the SDK implements it.
type routeAdder interface {
	AddRoute(route string, handler func(http.ResponseWriter, *http.Request), methods ...string) error
}

type App struct {
	edgexSdk *appsdk.AppFunctionsSDK
	lc       logger.LoggingClient
	routes   routeAdder

	ctxMu           sync.RWMutex
	edgexSdkContext *appcontext.Context

	configClient configWatcher
	confUpdateCh chan interface{}
	confErrCh    chan error

	config     session.ApplicationSettings
	deployment session.Deployment
	session    *session.Session
	board      *session.Board
	hub        *Hub
	publisher  *coreDataPublisher
	source     observation.Source
}

func NewApp() *App {
	return &App{
		confUpdateCh: make(chan interface{}),
		confErrCh:    make(chan error),
	}
}

// LoggingClient returns the service logger, or nil before the SDK is initialized.
func (app *App) LoggingClient() logger.LoggingClient {
	return app.lc
}

func (app *App) Initialize() (err error) {
	app.edgexSdk = &appsdk.AppFunctionsSDK{ServiceKey: serviceKey}
	if err := app.edgexSdk.Initialize(); err != nil {
		return errors.Wrap(err, "SDK initialization failed")
	}

	app.lc = app.edgexSdk.LoggingClient
	app.routes = app.edgexSdk
	app.lc.Info("Starting.")

	if app.configClient, err = getConfigClient(); err != nil {
		return errors.Wrap(err, "Failed to create config client.")
	}

	if err := app.configure(app.edgexSdk.ApplicationSettings()); err != nil {
		return err
	}
	return app.addRoutes()
}

// configure builds the localization session from the raw [ApplicationSettings].
func (app *App) configure(raw map[string]string) error {
	lgr := logutil.LogWrap{LoggingClient: app.lc}

	cfg, err := session.ParseApplicationSettings(app.lc, raw)
	if errors.Is(err, session.ErrUnexpectedConfigItems) {
		// warn on unexpected config items, but do not exit
		lgr.WarnIfErr(err, "Ignoring unexpected configuration.")
	} else if err != nil {
		return errors.Wrap(err, "config parse error")
	}
	app.config = cfg

	app.deployment, err = session.LoadDeployment(cfg.DeploymentFile)
	if err != nil {
		return err
	}
	app.lc.Info("Loaded deployment.", "file", cfg.DeploymentFile, "anchors", len(app.deployment.Anchors))

	var fm *localization.FingerprintMap
	if cfg.FingerprintFile != "" {
		fm, err = session.LoadFingerprintMap(cfg.FingerprintFile, app.deployment.GridSpec())
		if err != nil {
			return err
		}
		for _, id := range fm.Anchors() {
			_, known := app.deployment.Anchors[id]
			lgr.WarnIf(!known, "Fingerprint survey anchor is not in the deployment.",
				logutil.KeyValue{Key: "anchor", Val: id})
		}
	}

	// Validate already accepted these
	algs, _ := localization.ParseAlgorithms(cfg.Algorithms)
	localizers, err := session.NewLocalizers(app.lc, algs, app.deployment, fm)
	if err != nil {
		return err
	}

	app.board = session.NewBoard()
	app.hub = NewHub(app.lc)
	sinks := []session.Sink{app.board, app.hub}
	if cfg.PushToCoreData {
		app.publisher = newCoreDataPublisher(app.lc, app.pusher)
		sinks = append(sinks, app.publisher)
	}

	app.session, err = session.New(app.lc, aggregation.NewRegistry(cfg.AggregationParams()),
		localizers, cfg.LoopSettings(), sinks...)
	if err != nil {
		return err
	}

	app.source, err = app.newSource()
	return err
}

// newSource returns the configured observation source,
// or nil when observations arrive through the EdgeX pipeline.
func (app *App) newSource() (observation.Source, error) {
	cfg := app.config
	switch session.IngestSource(cfg.IngestSource) {
	case session.IngestSerial:
		return observation.NewSerialSource(app.lc, cfg.SerialPort, cfg.SerialBaud), nil

	case session.IngestReplay:
		return observation.NewReplaySource(app.lc, cfg.ReplayFile,
			time.Duration(cfg.ReplayIntervalMillis)*time.Millisecond, cfg.ReplayTargetID), nil

	case session.IngestSimulate:
		src, err := observation.NewSimulatedSource(app.lc, app.deployment.Geometry(), cfg.SimulateTargetID,
			localization.Point{X: cfg.SimulateTargetX, Y: cfg.SimulateTargetY},
			time.Duration(cfg.SimulateIntervalMillis)*time.Millisecond)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create simulated source")
		}
		src.RoundRSSI = cfg.SimulateRoundRSSI
		return src, nil
	}

	return nil, nil
}

func (app *App) RunUntilCancelled() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.taskLoop(ctx)
		app.lc.Info("Task loop has exited.")
	}()

	// The SDK handles these signals too, but doesn't always return from
	// MakeItRun afterwards; this guarantees the task loop stops.
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		s := <-signals

		app.lc.Info(fmt.Sprintf("Received '%s' signal from OS.", s.String()))
		cancel() // signal the taskLoop to finish
	}()

	if app.configClient != nil {
		app.configClient.WatchForChanges(app.confUpdateCh, app.confErrCh,
			&session.ApplicationSettings{}, appSettingsWaitKey)
	}

	// Subscribe to events.
	err := app.edgexSdk.SetFunctionsPipeline(
		app.contextGrabber,
		transforms.NewFilter([]string{observation.ResourceRSSIObservation}).FilterByValueDescriptor,
		app.processEdgeXEvent,
	)
	if err != nil {
		cancel()
		wg.Wait()
		return errors.Wrap(err, "failed to build pipeline")
	}
	if err := app.edgexSdk.MakeItRun(); err != nil {
		cancel()
		wg.Wait()
		return errors.Wrap(err, "failed to run pipeline")
	}

	// let task loop complete
	cancel()
	wg.Wait()
	app.lc.Info("Exiting.")

	return nil
}
