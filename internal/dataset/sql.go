package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// DefaultTable is the delivery table read by SQLSource when none is configured.
const DefaultTable = "deliveries"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSource reads deliveries from a table in Postgres or SQLite. It never writes.
type SQLSource struct {
	db    *sqlx.DB
	table string
	nulls NullSet
}

type deliveryRow struct {
	MatchID     sql.NullString `db:"match_id"`
	BattingTeam sql.NullString `db:"batting_team"`
	BowlingTeam sql.NullString `db:"bowling_team"`
	MatchWonBy  sql.NullString `db:"match_won_by"`
}

// NewSQLSource creates a source over table. The table name is interpolated into
// queries, so it must be a plain (optionally schema-qualified) identifier.
func NewSQLSource(db *sqlx.DB, table string, nulls NullSet) (*SQLSource, error) {
	if db == nil {
		return nil, fmt.Errorf("sql source: database is nil")
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("sql source: invalid table name %q", table)
	}
	if nulls == nil {
		nulls = NewNullSet(nil)
	}
	return &SQLSource{db: db, table: table, nulls: nulls}, nil
}

// Describe identifies the source in logs and health output
func (s *SQLSource) Describe() string {
	return "sql:" + s.table
}

// Fingerprint hashes the required columns of every row in a stable order, so
// an in-place UPDATE changes it as well as an INSERT or DELETE. It reads the
// table but skips the match derivation.
func (s *SQLSource) Fingerprint(ctx context.Context) (string, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return "", errors.Wrapf(ErrDataNotFound, "%s: %v", s.Describe(), err)
	}

	query := fmt.Sprintf(`SELECT %[1]s, %[2]s, %[3]s, %[4]s FROM %[5]s ORDER BY %[1]s, %[2]s, %[3]s, %[4]s`,
		ColumnMatchID, ColumnBattingTeam, ColumnBowlingTeam, ColumnMatchWonBy, s.table)

	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return "", errors.Wrapf(ErrDataFormat, "%s: fingerprint: %v", s.Describe(), err)
	}
	defer rows.Close()

	digest := xxhash.New()
	var count int64
	for rows.Next() {
		var row deliveryRow
		if err := rows.StructScan(&row); err != nil {
			return "", errors.Wrapf(ErrDataFormat, "%s: fingerprint: %v", s.Describe(), err)
		}
		writeField(digest, row.MatchID)
		writeField(digest, row.BattingTeam)
		writeField(digest, row.BowlingTeam)
		writeField(digest, row.MatchWonBy)
		count++
	}
	if err := rows.Err(); err != nil {
		return "", errors.Wrapf(ErrDataFormat, "%s: fingerprint: %v", s.Describe(), err)
	}

	return fmt.Sprintf("%s:%d:%016x", s.Describe(), count, digest.Sum64()), nil
}

// writeField appends one column to the digest. NULL and "" hash differently
// and the separator keeps adjacent columns from running together.
func writeField(digest *xxhash.Digest, v sql.NullString) {
	if !v.Valid {
		digest.WriteString("\x00")
	} else {
		digest.WriteString("\x01")
		digest.WriteString(v.String)
	}
	digest.WriteString("\x1f")
}

// Load selects the required columns of every row.
func (s *SQLSource) Load(ctx context.Context) (*Table, error) {
	if err := s.db.PingContext(ctx); err != nil {
		return nil, errors.Wrapf(ErrDataNotFound, "%s: %v", s.Describe(), err)
	}

	query := fmt.Sprintf(`SELECT %s, %s, %s, %s FROM %s`,
		ColumnMatchID, ColumnBattingTeam, ColumnBowlingTeam, ColumnMatchWonBy, s.table)

	var rows []deliveryRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrapf(ErrDataFormat, "%s: %v", s.Describe(), err)
	}

	table := &Table{Source: s.Describe(), Deliveries: make([]Delivery, 0, len(rows))}
	for _, row := range rows {
		matchID := strings.TrimSpace(s.value(row.MatchID))
		if matchID == "" {
			continue
		}
		table.Deliveries = append(table.Deliveries, Delivery{
			MatchID:     matchID,
			BattingTeam: s.value(row.BattingTeam),
			BowlingTeam: s.value(row.BowlingTeam),
			MatchWonBy:  s.value(row.MatchWonBy),
		})
	}

	return table, nil
}

func (s *SQLSource) value(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return s.nulls.Value(v.String)
}
