//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Command evaluate scores every localization algorithm against a fingerprint
// survey, using each surveyed position as ground truth.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/edgexfoundry/go-mod-core-contracts/models"

	"edgexfoundry/app-rssi-localization/internal/evaluation"
	"edgexfoundry/app-rssi-localization/internal/localization"
	"edgexfoundry/app-rssi-localization/internal/logutil"
	"edgexfoundry/app-rssi-localization/internal/pathloss"
	"edgexfoundry/app-rssi-localization/internal/session"
)

func main() {
	deploymentFile := flag.String("deployment", "res/deployment.yaml", "Deployment YAML with the anchor positions")
	surveyFile := flag.String("survey", "", "Fingerprint survey CSV")
	calibrationFile := flag.String("calibration", "", "Optional path-loss calibration CSV; refits the path-loss model")
	algorithms := flag.String("algorithms", "TLSL,TWCL,FPL", "Comma separated algorithms to evaluate")
	verbose := flag.Bool("v", false, "Print the error at every surveyed position")
	logLevel := flag.String("log-level", models.InfoLog, "Log level")
	flag.Parse()

	lc := logger.NewClient("evaluate", false, "", *logLevel)
	lgr := logutil.LogWrap{LoggingClient: lc}
	lgr.ExitIf(*surveyFile == "", "A fingerprint survey is required.")

	dep, err := session.LoadDeployment(*deploymentFile)
	lgr.ExitIfErr(err, "Failed to load deployment.", logutil.KeyValue{Key: "file", Val: *deploymentFile})

	if *calibrationFile != "" {
		dep.PathLoss = fitPathLoss(lgr, *calibrationFile)
	}

	algs, err := localization.ParseAlgorithms(*algorithms)
	lgr.ExitIfErr(err, "Invalid algorithms.")

	f, err := os.Open(*surveyFile)
	lgr.ExitIfErr(err, "Failed to open survey.", logutil.KeyValue{Key: "file", Val: *surveyFile})
	samples, err := localization.ReadCalibrationCSV(f)
	_ = f.Close()
	lgr.ExitIfErr(err, "Failed to read survey.", logutil.KeyValue{Key: "file", Val: *surveyFile})

	fm, err := localization.BuildFingerprintMap(samples, dep.GridSpec())
	lgr.ExitIfErr(err, "Failed to build fingerprint map.")

	localizers, err := session.NewLocalizers(lc, algs, dep, fm)
	lgr.ExitIfErr(err, "Failed to create localizers.")

	positions := evaluation.Positions(samples)
	lc.Info(fmt.Sprintf("Evaluating %d surveyed positions.", len(positions)))
	report, err := evaluation.Run(positions, localizers)
	lgr.ExitIfErr(err, "Evaluation failed.")

	if *verbose {
		report.WritePositions(os.Stdout)
		fmt.Println()
	}
	report.WriteSummary(os.Stdout)
}

func fitPathLoss(lgr logutil.LogWrap, path string) pathloss.Model {
	f, err := os.Open(path)
	lgr.ExitIfErr(err, "Failed to open calibration.", logutil.KeyValue{Key: "file", Val: path})
	defer f.Close()

	samples, err := evaluation.ReadPathLossCSV(f)
	lgr.ExitIfErr(err, "Failed to read calibration.", logutil.KeyValue{Key: "file", Val: path})

	m, err := pathloss.Fit(samples)
	lgr.ExitIfErr(err, "Failed to fit the path-loss model.")
	lgr.Info("Fitted path-loss model.", "l0", m.L0, "n", m.N, "samples", len(samples))
	return m
}
