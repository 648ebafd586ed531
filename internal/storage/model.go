package storage

import "database/sql"

// captureData is a captures table row.
type captureData struct {
	TransactionID string
	FileName      string
	FileType      string
	CaptureTime   int64
	ChannelID     sql.NullInt64
	MAC           string
	Device        sql.NullString
	Payload       []byte
}
