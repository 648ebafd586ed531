package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roman-kulish/docsis-pnm/internal/index"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

// ReaderOption configures the filters of an entry reader.
type ReaderOption func(*SqliteEntryReader)

// WithMAC restricts the reader to captures of a single device.
func WithMAC(mac pnm.MAC) ReaderOption {
	return func(r *SqliteEntryReader) {
		r.mac = &mac
	}
}

// WithChannel restricts the reader to captures of a single channel.
// pnm.NoChannel selects captures that carry no channel.
func WithChannel(ch pnm.ChannelID) ReaderOption {
	return func(r *SqliteEntryReader) {
		r.channel = &ch
	}
}

// WithFileTypes restricts the reader to captures of the given file types.
func WithFileTypes(types ...pnm.FileType) ReaderOption {
	return func(r *SqliteEntryReader) {
		r.fileTypes = append(r.fileTypes, types...)
	}
}

// WithStartTime excludes captures taken before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteEntryReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes captures taken after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteEntryReader) {
		r.endTime = &t
	}
}

// WithTimeRange is equivalent to applying both WithStartTime and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteEntryReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// SqliteEntryReader implements EntryReader for SQLite database backend.
type SqliteEntryReader struct {
	db *sql.DB

	mac       *pnm.MAC
	channel   *pnm.ChannelID
	fileTypes []pnm.FileType
	startTime *time.Time
	endTime   *time.Time

	current index.Entry
	rows    *sql.Rows
	err     error
}

func newSqliteEntryReader(ctx context.Context, db *sql.DB, opts ...ReaderOption) (*SqliteEntryReader, error) {
	r := &SqliteEntryReader{db: db}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SqliteEntryReader) init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("database connection required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "validating filters", fn: r.validateFilters},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SqliteEntryReader) validateFilters(context.Context) error {
	if r.startTime != nil && r.endTime != nil && r.startTime.After(*r.endTime) {
		return fmt.Errorf("start time %s is after end time %s", r.startTime, r.endTime)
	}
	for _, ft := range r.fileTypes {
		if !ft.Known() {
			return fmt.Errorf("%w: %s", pnm.ErrUnknownFileType, ft)
		}
	}
	return nil
}

// query builds the filtered select statement and its arguments.
func (r *SqliteEntryReader) query() (string, []any) {
	var where []string
	var args []any

	if r.mac != nil {
		where = append(where, "mac = ?")
		args = append(args, r.mac.String())
	}
	if r.channel != nil {
		if r.channel.Valid() {
			where = append(where, "channel_id = ?")
			args = append(args, int64(*r.channel))
		} else {
			where = append(where, "channel_id IS NULL")
		}
	}
	if len(r.fileTypes) > 0 {
		where = append(where, "file_type IN (?"+strings.Repeat(", ?", len(r.fileTypes)-1)+")")
		for _, ft := range r.fileTypes {
			args = append(args, ft.String())
		}
	}
	if r.startTime != nil {
		where = append(where, "capture_time >= ?")
		args = append(args, r.startTime.Unix())
	}
	if r.endTime != nil {
		where = append(where, "capture_time <= ?")
		args = append(args, r.endTime.Unix())
	}

	var sb strings.Builder
	sb.WriteString(selectCaptureColumns)
	if len(where) > 0 {
		sb.WriteString("\n    WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\n    ORDER BY capture_time, transaction_id")

	return sb.String(), args
}

func (r *SqliteEntryReader) initQuery(ctx context.Context) (err error) {
	query, args := r.query()
	if r.rows, err = r.db.QueryContext(ctx, query, args...); err != nil {
		return fmt.Errorf("querying captures: %w", err)
	}
	return nil
}

func (r *SqliteEntryReader) Next(ctx context.Context) bool {
	if r.err != nil || r.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		r.err = ctx.Err()
		return false
	default:
	}

	if !r.rows.Next() {
		return false
	}

	data, err := scanCapture(r.rows)
	if err != nil {
		r.err = fmt.Errorf("scanning capture: %w", err)
		return false
	}
	if r.current, r.err = toEntry(data); r.err != nil {
		return false
	}
	return true
}

func (r *SqliteEntryReader) Current() index.Entry {
	return r.current
}

func (r *SqliteEntryReader) Error() error {
	if r.err != nil {
		return r.err
	}
	if r.rows != nil {
		return r.rows.Err()
	}
	return nil
}

func (r *SqliteEntryReader) Close() error {
	if r.rows != nil {
		err := r.rows.Close()
		r.current = index.Entry{}
		r.rows = nil
		return err
	}
	return nil
}
