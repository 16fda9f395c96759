package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ListUsers returns the reduced summary of every registered user.
func (s *Store) ListUsers(ctx context.Context) ([]UserSummary, error) {
	rows, err := s.pool.Query(ctx, "list_users")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []UserSummary
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.Name, &u.Photo, &u.DiscordEnabled); err != nil {
			return nil, fmt.Errorf("scan user summary: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListUsersWithToken returns users eligible for polling. Users whose token
// has been cleared are excluded while their history stays readable.
func (s *Store) ListUsersWithToken(ctx context.Context) ([]User, error) {
	rows, err := s.pool.Query(ctx, "list_users_with_token")
	if err != nil {
		return nil, fmt.Errorf("list users with token: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser returns a user by id, or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, "user_by_id", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

// GetUserByToken returns the user registered with the given token, or ErrNotFound.
func (s *Store) GetUserByToken(ctx context.Context, token string) (*User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, "user_by_token", token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user by token: %w", err)
	}
	return &u, nil
}

// CreateUser registers a new user with Discord notifications enabled.
func (s *Store) CreateUser(ctx context.Context, name, token string, photo *string) (int64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, "insert_user", name, token, photo).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

// UpdateDiscordSettings updates the notification toggle and/or webhook URL.
// Nil fields are left unchanged.
func (s *Store) UpdateDiscordSettings(ctx context.Context, id int64, enabled *bool, webhookURL *string) error {
	tag, err := s.pool.Exec(ctx, "update_user_discord", id, enabled, webhookURL)
	if err != nil {
		return fmt.Errorf("update discord settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLastNotified records the time of the last successful Discord delivery.
func (s *Store) SetLastNotified(ctx context.Context, id int64, t time.Time) error {
	if _, err := s.pool.Exec(ctx, "update_last_notified", id, t); err != nil {
		return fmt.Errorf("update last notified: %w", err)
	}
	return nil
}

// ClearToken soft-deletes a user: the token is nulled so polling skips them,
// but the user row and score history remain.
func (s *Store) ClearToken(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "clear_user_token", id)
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user and all associated snapshots. Scores go first to
// satisfy the foreign key.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, "delete_user_scores", id); err != nil {
		return fmt.Errorf("delete user scores: %w", err)
	}
	tag, err := s.pool.Exec(ctx, "delete_user", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Token, &u.Photo,
		&u.DiscordEnabled, &u.DiscordWebhookURL, &u.LastDiscordNotification)
	return u, err
}
