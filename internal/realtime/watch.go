package realtime

import (
	"context"

	"github.com/rs/zerolog"
)

// Loader produces the current snapshot of a view.
type Loader[T any] func(ctx context.Context) (T, error)

// Watch streams snapshots of a view: one on start, then one after every signal on topics.
// Only the latest snapshot is buffered; a slow reader skips intermediate states.
// The returned cleanup func stops the watch and closes the channel.
func Watch[T any](ctx context.Context, notifier Notifier, topics []string, load Loader[T], logger zerolog.Logger) (<-chan T, func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan T, 1)
	sub := notifier.Subscribe(topics...)

	go func() {
		defer close(out)
		defer sub.Close()

		emit := func() {
			snapshot, err := load(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn().Err(err).Strs("topics", topics).Msg("failed to load snapshot")
				}
				return
			}
			select {
			case out <- snapshot:
			default:
				select {
				case <-out:
				default:
				}
				out <- snapshot
			}
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.C():
				emit()
			}
		}
	}()

	return out, cancel
}
