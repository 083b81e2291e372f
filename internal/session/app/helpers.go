//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package sessionapp

import (
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/edgexfoundry/go-mod-bootstrap/bootstrap/flags"
	"github.com/edgexfoundry/go-mod-configuration/configuration"
	"github.com/edgexfoundry/go-mod-configuration/pkg/types"
	"github.com/pkg/errors"
)

const (
	baseConsulPath     = "edgex/appservices/1.0/"
	defaultConsulPort  = 8500
	appSettingsWaitKey = "ApplicationSettings"
)

// configWatcher is the part of configuration.Client the service uses.
type configWatcher interface {
	WatchForChanges(updateChannel chan<- interface{}, errorChannel chan<- error, configuration interface{}, waitKey string)
}

// configProviderFlags is the part of the SDK's command line flags
// naming the configuration provider.
type configProviderFlags interface {
	ConfigProviderUrl() string
}

// getConfigClient returns a configuration client based on the command line args,
// or a default one if those lack a config provider URL.
// The SDK parses these same flags, but doesn't expose its client.
func getConfigClient() (configuration.Client, error) {
	sdkFlags := flags.New()
	sdkFlags.Parse(os.Args[1:])
	return newConfigClient(sdkFlags)
}

func newConfigClient(sdkFlags configProviderFlags) (configuration.Client, error) {
	cpUrl, err := url.Parse(sdkFlags.ConfigProviderUrl())
	if err != nil {
		return nil, err
	}

	cpPort := defaultConsulPort
	port := cpUrl.Port()
	if port != "" {
		cpPort, err = strconv.Atoi(port)
		if err != nil {
			return nil, errors.Wrap(err, "bad config port")
		}
	}

	configClient, err := configuration.NewConfigurationClient(types.ServiceConfig{
		Host:     cpUrl.Hostname(),
		Port:     cpPort,
		BasePath: baseConsulPath + serviceKey + "/",
		Type:     strings.Split(cpUrl.Scheme, ".")[0],
	})

	return configClient, errors.Wrap(err, "failed to get config client")
}
