//
// Copyright (C) 2020, 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"edgexfoundry/app-rssi-localization/internal/logutil"
	sessionapp "edgexfoundry/app-rssi-localization/internal/session/app"
)

func main() {
	app := sessionapp.NewApp()
	if err := app.Initialize(); err != nil {
		if app.LoggingClient() == nil {
			fmt.Printf("Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		lgr := logutil.LogWrap{LoggingClient: app.LoggingClient()}
		lgr.ExitIfErr(err, "Failed to initialize.")
	}

	lgr := logutil.LogWrap{LoggingClient: app.LoggingClient()}
	lgr.ExitIfErr(app.RunUntilCancelled(), "Service stopped with an error.")
	os.Exit(0)
}
