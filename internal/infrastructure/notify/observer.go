package notify

import (
	"fmt"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// Messages holds the user-visible notification texts.
type Messages struct {
	Start      string
	Progress   string
	Finish     string
	Error      string
	ErrorRetry string
	Cancel     string
	InProgress string
}

// DefaultMessages returns the default English texts.
func DefaultMessages() Messages {
	return Messages{
		Start:      "Preparing download",
		Progress:   "Downloading",
		Finish:     "Download complete, ready to install",
		Error:      "Download failed",
		ErrorRetry: "Download failed, retry to download again",
		Cancel:     "Download cancelled",
		InProgress: "An update is already downloading",
	}
}

// Observer turns session events into notifications for a Presenter.
type Observer struct {
	cfg       *update.Config
	title     string
	messages  Messages
	presenter update.Presenter
}

// NewObserver creates a notification observer for the session described
// by cfg. It returns nil when cfg disables notifications.
func NewObserver(cfg *update.Config, title string, messages Messages, presenter update.Presenter) *Observer {
	if !cfg.ShowNotification || presenter == nil {
		return nil
	}
	return &Observer{
		cfg:       cfg,
		title:     title,
		messages:  messages,
		presenter: presenter,
	}
}

// Attach appends the observer for cfg to observers when notifications are enabled.
func Attach(observers update.Observers, cfg *update.Config, title string, presenter update.Presenter) update.Observers {
	if o := NewObserver(cfg, title, DefaultMessages(), presenter); o != nil {
		return append(observers, o)
	}
	return observers
}

func (o *Observer) base(content string) update.Notification {
	return update.Notification{
		ID:          o.cfg.NotificationID,
		ChannelID:   o.cfg.ChannelID,
		ChannelName: o.cfg.ChannelName,
		Icon:        o.cfg.NotificationIcon,
		Title:       o.title,
		Content:     content,
		Vibrate:     o.cfg.Vibrate,
		Sound:       o.cfg.Sound,
	}
}

func (o *Observer) OnDownloading(alreadyInProgress bool) {
	if alreadyInProgress {
		n := o.base(o.messages.InProgress)
		o.presenter.OnStart(n)
	}
}

func (o *Observer) OnStart(url string) {
	n := o.base(o.messages.Start)
	n.Cancelable = o.cfg.SupportCancelDownload
	o.presenter.OnStart(n)
}

// OnProgress only renders ticks whose percentage changed.
func (o *Observer) OnProgress(progress, total int64, isChanged bool) {
	if !isChanged {
		return
	}
	percent := update.Percent(progress, total)
	content := o.messages.Progress
	if o.cfg.ShowPercentage {
		content = fmt.Sprintf("%s %3d%%", content, percent)
	}

	n := o.base(content)
	n.Progress = progress
	n.Total = total
	n.Percent = percent
	n.Cancelable = o.cfg.SupportCancelDownload
	o.presenter.OnProgress(n)
}

func (o *Observer) OnFinish(file string) {
	n := o.base(o.messages.Finish)
	n.File = file
	n.Percent = 100
	o.presenter.OnFinish(n)
}

func (o *Observer) OnError(err error, retryAllowed bool) {
	content := o.messages.Error
	if retryAllowed {
		content = o.messages.ErrorRetry
	}
	n := o.base(content)
	n.RetryAction = retryAllowed
	o.presenter.OnError(n)
}

func (o *Observer) OnCancel() {
	o.presenter.OnCancel(o.base(o.messages.Cancel))
}
