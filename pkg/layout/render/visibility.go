package render

import (
	"context"

	"github.com/matrix-org/tessera/pkg/transport"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Maximum amount of concurrent resume / pause requests.
const transportConcurrency = 8

// Resumes the tiles that became visible (or changed their layer) and pauses the ones that
// disappeared. Failures are logged: the next pass corrects the visibility anyway.
// Returns the refs that are considered visible afterwards.
func (r *Renderer[U]) updateVisibility(ctx context.Context, wanted map[string]transport.TileRef) map[string]transport.TileRef {
	var group errgroup.Group
	group.SetLimit(transportConcurrency)

	for key, ref := range wanted {
		if previous, found := r.visible[key]; found && previous.Layer == ref.Layer {
			continue
		}

		key, ref := key, ref
		group.Go(func() error {
			if err := r.transport.Resume(ctx, ref); err != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{
					"tile":        key,
					"producer_id": ref.ProducerID,
				}).Warn("failed to resume tile")
			}
			return nil
		})
	}

	for key, ref := range r.visible {
		if _, found := wanted[key]; found {
			continue
		}

		key, ref := key, ref
		group.Go(func() error {
			if err := r.transport.Pause(ctx, ref); err != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{
					"tile":        key,
					"producer_id": ref.ProducerID,
				}).Warn("failed to pause tile")
			}
			return nil
		})
	}

	_ = group.Wait()
	return wanted
}
