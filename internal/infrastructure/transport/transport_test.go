package transport

import (
	"sync"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// recorder collects the callbacks of one fetch.
type recorder struct {
	mu         sync.Mutex
	events     []string
	progress   [][2]int64
	file       string
	err        error
	onProgress func(progress, total int64)
}

func (r *recorder) OnStart(url string) {
	r.record("start")
}

func (r *recorder) OnProgress(progress, total int64) {
	r.mu.Lock()
	r.progress = append(r.progress, [2]int64{progress, total})
	hook := r.onProgress
	r.mu.Unlock()
	if hook != nil {
		hook(progress, total)
	}
}

func (r *recorder) OnFinish(file string) {
	r.mu.Lock()
	r.file = file
	r.mu.Unlock()
	r.record("finish")
}

func (r *recorder) OnError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	r.record("error")
}

func (r *recorder) OnCancel() {
	r.record("cancel")
}

func (r *recorder) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

var _ update.Callback = (*recorder)(nil)
