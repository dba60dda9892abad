package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

// Starts CPU profiling into `path`. The returned function stops the profiling and closes the file.
func StartCPUProfile(path string, logger *logrus.Entry) (func(), error) {
	logger = logger.WithField("path", path)
	logger.Info("starting CPU profiling")

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(file); err != nil {
		file.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()

		if err := file.Close(); err != nil {
			logger.WithError(err).Error("could not close CPU profile")
		}
	}, nil
}

// Returns a function that writes a heap profile into `path`, to be called once the interesting
// work (e.g. laying out every page of a scenario) is done.
func HeapProfileWriter(path string, logger *logrus.Entry) func() error {
	return func() error {
		logger.WithField("path", path).Info("writing heap profile")

		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("could not create memory profile: %w", err)
		}
		defer file.Close()

		runtime.GC()

		if err := pprof.WriteHeapProfile(file); err != nil {
			return fmt.Errorf("could not write memory profile: %w", err)
		}

		return nil
	}
}
