package update

import "github.com/google/uuid"

// Observer receives the lifecycle of update sessions.
//
// Exactly one of OnFinish, OnError or OnCancel ends a session. A rejected
// Start yields only OnDownloading(true).
type Observer interface {
	OnDownloading(alreadyInProgress bool)
	OnStart(url string)
	OnProgress(progress, total int64, isChanged bool)
	OnFinish(file string)
	OnError(err error, retryAllowed bool)
	OnCancel()
}

// ObserverFactory builds an observer bound to a single session.
type ObserverFactory func(sessionID uuid.UUID) Observer

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	Downloading func(alreadyInProgress bool)
	Start       func(url string)
	Progress    func(progress, total int64, isChanged bool)
	Finish      func(file string)
	Error       func(err error, retryAllowed bool)
	Cancel      func()
}

func (f ObserverFuncs) OnDownloading(alreadyInProgress bool) {
	if f.Downloading != nil {
		f.Downloading(alreadyInProgress)
	}
}

func (f ObserverFuncs) OnStart(url string) {
	if f.Start != nil {
		f.Start(url)
	}
}

func (f ObserverFuncs) OnProgress(progress, total int64, isChanged bool) {
	if f.Progress != nil {
		f.Progress(progress, total, isChanged)
	}
}

func (f ObserverFuncs) OnFinish(file string) {
	if f.Finish != nil {
		f.Finish(file)
	}
}

func (f ObserverFuncs) OnError(err error, retryAllowed bool) {
	if f.Error != nil {
		f.Error(err, retryAllowed)
	}
}

func (f ObserverFuncs) OnCancel() {
	if f.Cancel != nil {
		f.Cancel()
	}
}

// Observers notifies each observer in order.
type Observers []Observer

func (o Observers) OnDownloading(alreadyInProgress bool) {
	for _, obs := range o {
		obs.OnDownloading(alreadyInProgress)
	}
}

func (o Observers) OnStart(url string) {
	for _, obs := range o {
		obs.OnStart(url)
	}
}

func (o Observers) OnProgress(progress, total int64, isChanged bool) {
	for _, obs := range o {
		obs.OnProgress(progress, total, isChanged)
	}
}

func (o Observers) OnFinish(file string) {
	for _, obs := range o {
		obs.OnFinish(file)
	}
}

func (o Observers) OnError(err error, retryAllowed bool) {
	for _, obs := range o {
		obs.OnError(err, retryAllowed)
	}
}

func (o Observers) OnCancel() {
	for _, obs := range o {
		obs.OnCancel()
	}
}
