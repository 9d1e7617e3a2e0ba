package corrector

import (
	"log/slog"
	"time"

	"github.com/radovskyb/watcher"
)

// WatchModel polls the model file and swaps a freshly loaded Stats into n
// when it changes on disk, so the dictionary can be edited while the bot
// runs. Blocks; run it in a goroutine. Returns when the watcher is closed
// or fails to start.
func WatchModel(model *TSVModel, n *Norvig) error {
	w := watcher.New()

	go func() {
		for {
			select {
			case <-w.Event:
				stats, err := model.Load()
				if err != nil {
					slog.Warn("model reload failed", "path", model.Path, "err", err)
					continue
				}
				n.ReplaceStats(stats)
				slog.Info("model reloaded", "path", model.Path, "words", stats.Len())
			case err := <-w.Error:
				slog.Warn("model watcher error", "err", err)
			case <-w.Closed:
				return
			}
		}
	}()

	if err := w.Add(model.Path); err != nil {
		return err
	}
	return w.Start(time.Second)
}
