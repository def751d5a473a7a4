package blockwatch

import (
	"time"

	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
)

// HeightSource yields new chain block heights, one round each. Chain sync
// stays outside this module; IntervalSource stands in for it.
type HeightSource interface {
	Start() error
	Stop() error
	Heights() <-chan uint64
}

//-----------------------------------------------------------------------------

// IntervalSource emits consecutive heights on a fixed wall-clock interval.
type IntervalSource struct {
	service.BaseService

	interval time.Duration
	next     uint64
	out      chan uint64
}

var _ HeightSource = (*IntervalSource)(nil)

func NewIntervalSource(interval time.Duration, initialHeight uint64) *IntervalSource {
	src := &IntervalSource{
		interval: interval,
		next:     initialHeight + 1,
		out:      make(chan uint64, 1),
	}
	src.BaseService = *service.NewBaseService(nil, "IntervalSource", src)
	return src
}

func (src *IntervalSource) OnStart() error {
	go src.emitRoutine()
	return nil
}

func (src *IntervalSource) OnStop() {}

func (src *IntervalSource) Heights() <-chan uint64 {
	return src.out
}

func (src *IntervalSource) emitRoutine() {
	ticker := time.NewTicker(src.interval)
	defer ticker.Stop()
	for {
		select {
		case <-src.Quit():
			return
		case <-ticker.C:
			select {
			case src.out <- src.next:
				src.next++
			case <-src.Quit():
				return
			}
		}
	}
}

//-----------------------------------------------------------------------------

// Handler receives each observed height.
type Handler func(height uint64)

// Watcher forwards heights from a source to its handler, typically the
// consensus reactor's OnNewHeight.
type Watcher struct {
	service.BaseService

	source  HeightSource
	handler Handler
}

func NewWatcher(source HeightSource, handler Handler) *Watcher {
	w := &Watcher{
		source:  source,
		handler: handler,
	}
	w.BaseService = *service.NewBaseService(nil, "BlockWatcher", w)
	return w
}

func (w *Watcher) SetLogger(logger log.Logger) {
	w.Logger = logger
}

func (w *Watcher) OnStart() error {
	if err := w.source.Start(); err != nil {
		return err
	}
	go w.watchRoutine()
	return nil
}

func (w *Watcher) OnStop() {
	if err := w.source.Stop(); err != nil {
		w.Logger.Error("failed to stop height source", "err", err)
	}
}

func (w *Watcher) watchRoutine() {
	for {
		select {
		case <-w.Quit():
			return
		case height, ok := <-w.source.Heights():
			if !ok {
				return
			}
			w.Logger.Debug("new block height", "height", height)
			w.handler(height)
		}
	}
}
