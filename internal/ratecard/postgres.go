package ratecard

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const programsTable = "programs"

// programColumns are selected as text so that incomplete numeric data reaches
// the pricing stage unchanged instead of failing the scan.
var programColumns = []string{
	"id",
	"channel",
	"COALESCE(day, '')",
	"COALESCE(time, '')",
	"program",
	"COALESCE(slot, '')",
	"cost::text",
	"tvr::text",
	"net_cost::text",
	"client_rate::text",
}

// Querier is the subset of pgxpool.Pool used by PostgresStore.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore reads the rate card from a PostgreSQL "programs" table.
type PostgresStore struct {
	db      Querier
	builder sq.StatementBuilderType
	logger  *zap.Logger
}

// NewPostgresStore wraps an existing pool or connection.
func NewPostgresStore(logger *zap.Logger, db Querier) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger:  logger,
	}
}

// OpenPostgres connects a pool for dsn and returns a store over it. The
// caller owns the returned pool and must close it.
func OpenPostgres(ctx context.Context, logger *zap.Logger, dsn string) (*PostgresStore, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create rate card pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to reach rate card database: %w", err)
	}
	return NewPostgresStore(logger, pool), pool, nil
}

func (s *PostgresStore) lookupQuery(ids []int64) (string, []any, error) {
	return s.builder.
		Select(programColumns...).
		From(programsTable).
		Where(sq.Eq{"id": ids}).
		OrderBy("channel", "slot", "program").
		ToSql()
}

func (s *PostgresStore) channelQuery(channel string) (string, []any, error) {
	return s.builder.
		Select(programColumns...).
		From(programsTable).
		Where(sq.Eq{"channel": channel}).
		OrderBy("slot", "program").
		ToSql()
}

func (s *PostgresStore) channelsQuery() (string, []any, error) {
	return s.builder.
		Select("DISTINCT channel").
		From(programsTable).
		OrderBy("channel ASC").
		ToSql()
}

// Lookup implements Store.
func (s *PostgresStore) Lookup(ctx context.Context, ids []int64) ([]Program, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := s.lookupQuery(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build program lookup: %w", err)
	}
	programs, err := s.queryPrograms(ctx, query, args)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("rate card lookup",
		zap.String("op", "ratecard.Lookup"),
		zap.Int("requested", len(ids)),
		zap.Int("found", len(programs)),
	)
	return programs, nil
}

// ProgramsByChannel implements Store.
func (s *PostgresStore) ProgramsByChannel(ctx context.Context, channel string) ([]Program, error) {
	query, args, err := s.channelQuery(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to build channel program query: %w", err)
	}
	return s.queryPrograms(ctx, query, args)
}

// Channels implements Store.
func (s *PostgresStore) Channels(ctx context.Context) ([]string, error) {
	query, args, err := s.channelsQuery()
	if err != nil {
		return nil, fmt.Errorf("failed to build channel query: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	channels, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read channels: %w", err)
	}
	return channels, nil
}

func (s *PostgresStore) queryPrograms(ctx context.Context, query string, args []any) ([]Program, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query programs: %w", err)
	}
	defer rows.Close()

	var programs []Program
	for rows.Next() {
		var (
			p                              Program
			cost, tvr, netCost, clientRate *string
		)
		if err := rows.Scan(&p.ID, &p.Channel, &p.Day, &p.Time, &p.Program, &p.Slot,
			&cost, &tvr, &netCost, &clientRate); err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		p.Cost = textValue(cost)
		p.TVR = textValue(tvr)
		p.NetCost = textValue(netCost)
		p.ClientRate = textValue(clientRate)
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read programs: %w", err)
	}
	return programs, nil
}

func textValue(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
