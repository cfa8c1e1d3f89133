package update

import (
	"context"

	"github.com/google/uuid"
)

// PackageInfo identifies an update package.
type PackageInfo struct {
	PackageName string `json:"packageName" yaml:"packageName"`
	VersionCode int64  `json:"versionCode" yaml:"versionCode"`
}

// PackageInfoReader extracts package identity from an artifact on disk.
type PackageInfoReader interface {
	ReadPackageInfo(path string) (*PackageInfo, error)
}

// HostIdentity describes the running application.
type HostIdentity interface {
	PackageName() string
	AppName() string
}

// CacheDirProvider returns the default directory for downloaded artifacts.
type CacheDirProvider interface {
	CacheDir() (string, error)
}

// InstallLauncher hands a downloaded artifact to the installer.
type InstallLauncher interface {
	Install(ctx context.Context, file, authority string) error
}

// Notification is what a Presenter renders for a session.
type Notification struct {
	ID          int
	ChannelID   string
	ChannelName string
	Icon        string
	Title       string
	Content     string
	Progress    int64
	Total       int64
	Percent     int
	Vibrate     bool
	Sound       bool
	Cancelable  bool
	RetryAction bool
	File        string
}

// Presenter renders user-visible notifications.
type Presenter interface {
	OnStart(n Notification)
	OnProgress(n Notification)
	OnFinish(n Notification)
	OnError(n Notification)
	OnCancel(n Notification)
}

// RetryStore keeps the retry counter per artifact URL between sessions.
type RetryStore interface {
	RetryCount(ctx context.Context, url string) (int, error)
	IncrementRetry(ctx context.Context, url string) (int, error)
	ResetRetry(ctx context.Context, url string) error
}

// SessionRepository stores finished sessions.
type SessionRepository interface {
	Save(ctx context.Context, record *SessionRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*SessionRecord, error)
	List(ctx context.Context, limit int) ([]*SessionRecord, error)
}
