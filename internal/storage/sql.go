package storage

import (
	_ "embed"
)

var (
	//go:embed schema.sql
	initSchemaSQL string

	//go:embed indexes.sql
	initIndexesSQL string
)

const insertCaptureSQL = `
    INSERT OR REPLACE INTO captures (
        transaction_id,
        file_name,
        file_type,
        capture_time,
        channel_id,
        mac,
        device,
        payload
    )
    VALUES `

const capturePlaceholder = "(?, ?, ?, ?, ?, ?, ?, ?)"

const deleteCaptureSQL = `DELETE FROM captures WHERE transaction_id = ?`

const selectCaptureColumns = `
    SELECT transaction_id,
           file_name,
           file_type,
           capture_time,
           channel_id,
           mac,
           device,
           payload
    FROM captures`

const selectCaptureSQL = selectCaptureColumns + `
    WHERE transaction_id = ?`
