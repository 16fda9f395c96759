package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tariwatch/tariwatch/internal/tari"
)

// InsertSnapshot appends a new score record for a user. The creation
// timestamp is assigned by the database; rows are never updated afterwards.
func (s *Store) InsertSnapshot(ctx context.Context, userID int64, rec tari.Record) (*Snapshot, error) {
	snap := Snapshot{
		UserID:     userID,
		TotalScore: rec.TotalScore,
		Gems:       rec.Gems,
		Shells:     rec.Shells,
		Hammers:    rec.Hammers,
		YatHolding: rec.YatHolding,
		Followers:  rec.Followers,
		Rank:       rec.Rank,
	}
	err := s.pool.QueryRow(ctx, "insert_snapshot",
		userID, rec.TotalScore, rec.Gems, rec.Shells, rec.Hammers,
		rec.YatHolding, rec.Followers, rec.Rank,
	).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return &snap, nil
}

// RecentSnapshots returns the newest limit snapshots for a user in
// reverse-chronological order.
func (s *Store) RecentSnapshots(ctx context.Context, userID int64, limit int) ([]Snapshot, error) {
	rows, err := s.pool.Query(ctx, "recent_snapshots", userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent snapshots: %w", err)
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

// SnapshotsSince returns snapshots at or after the cutoff in chronological
// order. A zero cutoff returns the full history.
func (s *Store) SnapshotsSince(ctx context.Context, userID int64, since time.Time) ([]Snapshot, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if since.IsZero() {
		rows, err = s.pool.Query(ctx, "snapshots_all", userID)
	} else {
		rows, err = s.pool.Query(ctx, "snapshots_since", userID, since)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshots since: %w", err)
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

// FirstSnapshot returns the oldest snapshot for a user, or ErrNotFound.
func (s *Store) FirstSnapshot(ctx context.Context, userID int64) (*Snapshot, error) {
	snap, err := scanSnapshot(s.pool.QueryRow(ctx, "first_snapshot", userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("first snapshot: %w", err)
	}
	return &snap, nil
}

// Stats aggregates the user's historical highs and record count.
func (s *Store) Stats(ctx context.Context, userID int64) (*UserStats, error) {
	var st UserStats
	err := s.pool.QueryRow(ctx, "user_stats", userID).Scan(
		&st.HighScore, &st.HighGems, &st.HighShells, &st.HighHammers,
		&st.HighYat, &st.HighFollowers, &st.BestRank, &st.TotalRecords,
	)
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return &st, nil
}

func collectSnapshots(rows pgx.Rows) ([]Snapshot, error) {
	var snaps []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanSnapshot(row pgx.Row) (Snapshot, error) {
	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.UserID, &snap.CreatedAt, &snap.TotalScore,
		&snap.Gems, &snap.Shells, &snap.Hammers, &snap.YatHolding,
		&snap.Followers, &snap.Rank)
	return snap, err
}
