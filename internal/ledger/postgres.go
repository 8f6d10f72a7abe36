// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package ledger

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/schildwaechter/genteelfolio/internal/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

// Postgres is the ledger backed by a pgx pool
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects and brings the schema up to date
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p := &Postgres{pool: pool}
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return err
	}
	for _, f := range files {
		var applied bool
		if err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, f).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}
		sql, err := migrations.ReadFile("migrations/" + f)
		if err != nil {
			return err
		}
		if _, err := p.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := p.pool.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, f); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) OpenDownload(ctx context.Context, entry types.DownloadLog) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO download_logs (log_id, file_key, requester_ip, user_agent, status, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.ID, entry.FileKey, entry.RequesterIP, entry.UserAgent, entry.Status, entry.CreatedAt,
	)
	return err
}

func (p *Postgres) SetDownloadStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE download_logs SET status=$2 WHERE log_id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) RedeemDownload(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE download_logs SET status=$2 WHERE log_id=$1 AND status=$3`,
		id, types.DownloadRedeemed, types.DownloadSuccess,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SaveBooking(ctx context.Context, booking types.Booking) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO bookings (id, name, email, slot_date, slot_time, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		booking.ID, booking.Name, booking.Email, booking.Date, booking.Time, booking.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrSlotTaken
	}
	return err
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}
