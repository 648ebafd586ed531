package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/lib/pq"

	"github.com/roman-kulish/docsis-pnm/internal/index"
)

const exportColumns = 8

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ErrInvalidTable is returned for table names that are not plain lower case SQL identifiers.
var ErrInvalidTable = errors.New("invalid table name")

// Sink receives catalogued captures. Store is a Sink.
type Sink interface {
	SaveEntries(ctx context.Context, entries ...index.Entry) error
}

// PostgresSink exports catalogued captures into a PostgreSQL (or TimescaleDB)
// table keyed by transaction id. It is write only; restoring an index is the
// job of a Store.
type PostgresSink struct {
	db    *sql.DB
	table string
}

// NewPostgresSink creates a sink writing into table through db.
func NewPostgresSink(db *sql.DB, table string) (*PostgresSink, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return &PostgresSink{db: db, table: table}, nil
}

// OpenPostgresSink connects to the database described by connString.
func OpenPostgresSink(connString, table string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	s, err := NewPostgresSink(db, table)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return s, nil
}

// SaveEntries upserts entries in a single statement. A capture exported again
// under the same transaction id replaces the earlier row.
func (s *PostgresSink) SaveEntries(ctx context.Context, entries ...index.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(s.table)
	b.WriteString(" (transaction_id, file_name, file_type, capture_time, channel_id, mac, device, payload) VALUES ")

	args := make([]any, 0, len(entries)*exportColumns)
	for i, e := range entries {
		data, err := toCaptureData(e)
		if err != nil {
			return fmt.Errorf("exporting capture %s: %w", e.TransactionID, err)
		}

		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := range exportColumns {
			if c > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", len(args)+c+1)
		}
		b.WriteString(")")

		args = append(args,
			data.TransactionID,
			data.FileName,
			data.FileType,
			e.Time(),
			data.ChannelID,
			data.MAC,
			data.Device,
			data.Payload,
		)
	}

	b.WriteString(" ON CONFLICT (transaction_id) DO UPDATE SET" +
		" file_name = EXCLUDED.file_name, file_type = EXCLUDED.file_type," +
		" capture_time = EXCLUDED.capture_time, channel_id = EXCLUDED.channel_id," +
		" mac = EXCLUDED.mac, device = EXCLUDED.device, payload = EXCLUDED.payload")

	if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("exporting captures: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}

var _ Sink = (*PostgresSink)(nil)
