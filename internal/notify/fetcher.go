package notify

import (
	"context"

	"campusevents/internal/repository"
)

// RepoFetcher loads snapshots straight from the notifications repository.
type RepoFetcher struct {
	repo *repository.NotificationRepository
}

func NewRepoFetcher(repo *repository.NotificationRepository) *RepoFetcher {
	return &RepoFetcher{repo: repo}
}

func (f *RepoFetcher) FetchNotifications(ctx context.Context, userID string, limit int) (*Snapshot, error) {
	notifications, err := f.repo.ListLatest(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	unread, err := f.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Notifications: notifications, Unread: unread}, nil
}
