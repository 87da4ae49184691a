// Package janitor removes avatar objects that no user references anymore,
// e.g. after an avatar update or user deletion.
package janitor

import (
	"context"
	"time"

	"kwadrop/logger"
	"kwadrop/storage"
)

const (
	// DefaultInterval is how often a sweep runs.
	DefaultInterval = 30 * time.Minute
	// minAge protects freshly uploaded objects whose user row may not be
	// committed yet.
	minAge = 30 * time.Minute
)

// AvatarLister yields the avatar object names users currently reference.
type AvatarLister interface {
	ListAvatars() ([]string, error)
}

// ObjectStore is the slice of avatar storage the sweep needs.
type ObjectStore interface {
	List(ctx context.Context) ([]storage.ObjectInfo, error)
	Remove(ctx context.Context, objectName string) error
}

// Janitor periodically deletes unreferenced avatar objects.
type Janitor struct {
	users    AvatarLister
	avatars  ObjectStore
	interval time.Duration
}

// New creates a janitor. A non-positive interval falls back to
// DefaultInterval.
func New(users AvatarLister, avatars ObjectStore, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Janitor{users: users, avatars: avatars, interval: interval}
}

// Run sweeps on a ticker until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Sweep(ctx); err != nil {
				logger.Error("avatar sweep failed", logger.ErrorField(err))
			}
		}
	}
}

// Sweep deletes every avatar object that is unreferenced and older than
// minAge.
func (j *Janitor) Sweep(ctx context.Context) error {
	referenced, err := j.users.ListAvatars()
	if err != nil {
		return err
	}
	inUse := make(map[string]bool, len(referenced))
	for _, name := range referenced {
		inUse[name] = true
	}

	objects, err := j.avatars.List(ctx)
	if err != nil {
		return err
	}

	removed := 0
	cutoff := time.Now().Add(-minAge)
	for _, obj := range objects {
		if inUse[obj.Name] || obj.LastModified.After(cutoff) {
			continue
		}
		if err := j.avatars.Remove(ctx, obj.Name); err != nil {
			logger.Warn("failed to remove stale avatar",
				logger.String("object", obj.Name), logger.ErrorField(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("avatar sweep completed", logger.Int("removed", removed))
	}
	return nil
}
