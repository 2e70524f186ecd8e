package auth

import (
	"context"

	"github.com/MimeLyc/subtitle-editor/internal/apperr"
)

// Directory answers ownership questions about the hosting platform's data.
type Directory interface {
	ChannelOfVideo(ctx context.Context, videoID string) (channelID int64, found bool, err error)
	CanAccessChannel(ctx context.Context, userID, channelID int64) (bool, error)
}

// Authorizer decides whether a user may edit a video's captions: the user's
// account has to own the video's channel.
type Authorizer struct {
	dir Directory
}

func NewAuthorizer(dir Directory) *Authorizer {
	return &Authorizer{dir: dir}
}

// CanEditVideo returns false for unknown videos.
func (a *Authorizer) CanEditVideo(ctx context.Context, claims *Claims, videoID string) (bool, error) {
	if claims == nil {
		return false, nil
	}
	channelID, found, err := a.dir.ChannelOfVideo(ctx, videoID)
	if err != nil {
		return false, apperr.Wrap(err, apperr.ErrStorage, "failed to resolve video channel").WithContext("video", videoID)
	}
	if !found {
		return false, nil
	}
	ok, err := a.dir.CanAccessChannel(ctx, claims.UserID, channelID)
	if err != nil {
		return false, apperr.Wrap(err, apperr.ErrStorage, "failed to check channel access").WithContext("video", videoID)
	}
	return ok, nil
}
