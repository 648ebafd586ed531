package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roman-kulish/docsis-pnm/internal/index"
	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toCaptureData(e index.Entry) (*captureData, error) {
	data := captureData{
		TransactionID: e.TransactionID,
		FileName:      e.FileName,
		FileType:      e.FileType.String(),
		CaptureTime:   int64(e.CaptureTime),
		ChannelID: sql.NullInt64{
			Int64: int64(e.ChannelID),
			Valid: e.ChannelID.Valid(),
		},
		MAC:     e.MAC.String(),
		Payload: e.Payload,
	}
	if data.Payload == nil {
		data.Payload = []byte{} // payload column is NOT NULL
	}

	if e.Device != (index.DeviceDetails{}) {
		p, err := json.Marshal(e.Device)
		if err != nil {
			return nil, fmt.Errorf("marshaling device details: %w", err)
		}
		data.Device = sql.NullString{String: string(p), Valid: true}
	}

	return &data, nil
}

func toEntry(data *captureData) (index.Entry, error) {
	e := index.Entry{
		TransactionID: data.TransactionID,
		FileName:      data.FileName,
		CaptureTime:   uint32(data.CaptureTime),
		ChannelID:     pnm.NoChannel,
		Payload:       data.Payload,
	}

	var err error
	if e.FileType, err = pnm.ParseFileType(data.FileType); err != nil {
		return index.Entry{}, fmt.Errorf("capture %s: %w", data.TransactionID, err)
	}
	if e.MAC, err = pnm.ParseMAC(data.MAC); err != nil {
		return index.Entry{}, fmt.Errorf("capture %s: %w", data.TransactionID, err)
	}
	if data.ChannelID.Valid {
		e.ChannelID = pnm.ChannelID(data.ChannelID.Int64)
	}
	if data.Device.Valid {
		if err = json.Unmarshal([]byte(data.Device.String), &e.Device); err != nil {
			return index.Entry{}, fmt.Errorf("capture %s: unmarshaling device details: %w", data.TransactionID, err)
		}
	}

	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapture(row rowScanner) (*captureData, error) {
	var data captureData
	err := row.Scan(
		&data.TransactionID,
		&data.FileName,
		&data.FileType,
		&data.CaptureTime,
		&data.ChannelID,
		&data.MAC,
		&data.Device,
		&data.Payload,
	)
	if err != nil {
		return nil, err
	}
	return &data, nil
}
