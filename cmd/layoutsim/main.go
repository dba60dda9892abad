/*
Copyright 2022 The Matrix.org Foundation C.I.C.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/matrix-org/tessera/pkg/config"
	"github.com/matrix-org/tessera/pkg/layout"
	"github.com/matrix-org/tessera/pkg/layout/activity"
	"github.com/matrix-org/tessera/pkg/layout/classifier"
	"github.com/matrix-org/tessera/pkg/layout/render"
	"github.com/matrix-org/tessera/pkg/profiling"
	"github.com/matrix-org/tessera/pkg/roster"
	"github.com/matrix-org/tessera/pkg/signaling"
	"github.com/matrix-org/tessera/pkg/telemetry"
	"github.com/matrix-org/tessera/pkg/transport"
	"github.com/sirupsen/logrus"
)

func main() {
	// Parse command line flags.
	var (
		configFilePath = flag.String("config", "config.yaml", "configuration file path")
		scenarioPath   = flag.String("scenario", "scenario.yaml", "room to lay out")
		loopbackFlag   = flag.Bool("loopback", false, "send consumer requests and layout updates over an in-process WebRTC data channel")
		cpuProfile     = flag.String("cpuProfile", "", "write CPU profile to `file`")
		memProfile     = flag.String("memProfile", "", "write memory profile to `file`")
	)
	flag.Parse()

	// Initialize logging subsystem (formatting, global logging framework etc).
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	logger := logrus.NewEntry(logrus.StandardLogger())

	// Load the config file from the environment variable or path.
	config, err := config.LoadConfig(*configFilePath)
	if err != nil {
		logger.WithError(err).Fatal("could not load config")
		return
	}

	switch config.LogLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	case "fatal":
		logrus.SetLevel(logrus.FatalLevel)
	case "panic":
		logrus.SetLevel(logrus.PanicLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Functions that are called before exiting, e.g. to stop the profiler.
	deferredFunctions := []func(){}
	defer func() {
		for i := len(deferredFunctions) - 1; i >= 0; i-- {
			deferredFunctions[i]()
		}
	}()

	if *cpuProfile != "" {
		stop, err := profiling.StartCPUProfile(*cpuProfile, logger)
		if err != nil {
			logger.WithError(err).Fatal("could not start CPU profiling")
		}
		deferredFunctions = append(deferredFunctions, stop)
	}

	if *memProfile != "" {
		writeHeapProfile := profiling.HeapProfileWriter(*memProfile, logger)
		deferredFunctions = append(deferredFunctions, func() {
			if err := writeHeapProfile(); err != nil {
				logger.WithError(err).Error("could not write memory profile")
			}
		})
	}

	if config.Telemetry.Enabled() {
		shutdown, err := telemetry.Setup(ctx, config.Telemetry)
		if err != nil {
			logger.WithError(err).Fatal("could not set up telemetry")
		}
		deferredFunctions = append(deferredFunctions, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("could not flush the traces")
			}
		})
	}

	scenario, err := LoadScenario(*scenarioPath)
	if err != nil {
		logger.WithError(err).Fatal("could not load scenario")
	}

	logger = logger.WithField("member", scenario.Member)

	// Where consumer requests and layout updates go.
	var (
		media   render.MediaTransport = logTransport{logger: logger.WithField("component", "transport")}
		emitter activity.Emitter      = logEmitter{logger: logger.WithField("component", "emitter")}
	)

	if *loopbackFlag {
		connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
		peers, err := newLoopback(connectCtx, config.WebRTC, logger.WithField("component", "loopback"))
		cancelConnect()
		if err != nil {
			logger.WithError(err).Fatal("could not connect the loopback peers")
		}
		deferredFunctions = append(deferredFunctions, peers.Close)

		keyframes := transport.NewKeyframeRequester(peers.local, time.Second)
		for producerID, ssrc := range scenario.SSRCs() {
			keyframes.Bind(producerID, ssrc)
		}

		dataChannelTransport := transport.NewDataChannelTransport(
			peers.channel, keyframes, config.Layout.QueueSize, logger.WithField("component", "transport"),
		)
		deferredFunctions = append(deferredFunctions, dataChannelTransport.Close)

		media = dataChannelTransport
		emitter = signaling.NewDataChannelChannel(peers.channel, logger.WithField("component", "emitter"))
	}

	if config.Matrix.Enabled() {
		client, err := signaling.NewMatrixClient(config.Matrix)
		if err != nil {
			logger.WithError(err).Fatal("could not create matrix client")
		}

		emitter = signaling.NewMatrixChannel(client, config.Matrix.Focus, config.Matrix.ConferenceID, logger.WithField("component", "emitter"))
	}

	// The scenario is laid out once, so nothing listens to the roster changes.
	tracker := roster.NewTracker(config.Layout.LoudnessWindow, nil, logger)

	engine, err := layout.NewEngine[string](
		config.Layout,
		scenario.Member,
		tracker,
		media,
		textTiles{},
		logMainView{logger: logger.WithField("component", "main")},
		emitter,
		logger,
	)
	if err != nil {
		logger.WithError(err).Fatal("could not create the layout engine")
	}
	defer engine.Stop()

	if err := scenario.Populate(tracker); err != nil {
		logger.WithError(err).Fatal("could not populate the roster")
	}

	result, err := engine.ChangeVids(ctx, scenario.Input(tracker))
	if err != nil {
		logger.WithError(err).Error("could not lay out the scenario")
		return
	}

	for index, room := range result.Classification.BatchRooms {
		page, err := engine.GeneratePageContent(ctx, index, classifier.NoRoom, false)
		if err != nil {
			logger.WithError(err).WithField("page", index).Error("could not render page")
			return
		}

		printPage(page, room)
	}
}

func printPage(page render.Page[string], room int) {
	header := "page"
	if room != classifier.NoRoom {
		header = fmt.Sprintf("breakout room %d, page", room)
	}

	fmt.Printf("--- %s %d (%dx%d)\n", header, page.Index, page.Grid.NumRows, page.Grid.NumCols)
	for _, text := range page.Primary {
		fmt.Printf("  %s\n", text)
	}

	if len(page.Alt) > 0 {
		fmt.Printf("  alt: %s\n", strings.Join(page.Alt, " | "))
	}
}
