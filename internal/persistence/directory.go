package persistence

import (
	"context"
	"database/sql"
	"errors"
)

// ChannelOfVideo resolves the channel that owns a video.
func (s *SQLStore) ChannelOfVideo(ctx context.Context, videoID string) (int64, bool, error) {
	var channelID int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT channel_id FROM videos WHERE uuid = ?`), videoID).Scan(&channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return channelID, true, nil
}

// CanAccessChannel reports whether the user's account owns the channel.
func (s *SQLStore) CanAccessChannel(ctx context.Context, userID, channelID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(
		ctx,
		s.rebind(`SELECT COUNT(*)
		 FROM video_channels c
		 JOIN users u ON u.account_id = c.account_id
		 WHERE u.id = ? AND c.id = ?`),
		userID,
		channelID,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) UpsertUser(ctx context.Context, userID, accountID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		s.rebind(`INSERT INTO users (id, account_id) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET account_id=excluded.account_id`),
		userID, accountID,
	)
	return err
}

func (s *SQLStore) UpsertChannel(ctx context.Context, channelID, accountID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		s.rebind(`INSERT INTO video_channels (id, account_id) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET account_id=excluded.account_id`),
		channelID, accountID,
	)
	return err
}

func (s *SQLStore) UpsertVideo(ctx context.Context, videoID string, channelID int64) error {
	_, err := s.db.ExecContext(
		ctx,
		s.rebind(`INSERT INTO videos (uuid, channel_id) VALUES (?, ?)
		ON CONFLICT(uuid) DO UPDATE SET channel_id=excluded.channel_id`),
		videoID, channelID,
	)
	return err
}
