package index

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/docsis-pnm/internal/pnm"
)

// DeviceDetails describes the modem a capture was taken from, as reported by
// the orchestration layer that requested it.
type DeviceDetails struct {
	IPAddress       string `json:"ipAddress,omitempty"`
	Vendor          string `json:"vendor,omitempty"`
	Model           string `json:"model,omitempty"`
	SoftwareVersion string `json:"softwareVersion,omitempty"`
}

// Entry is one catalogued capture.
type Entry struct {
	TransactionID string        `json:"transactionId"`
	FileName      string        `json:"fileName"`
	FileType      pnm.FileType  `json:"fileType"`
	CaptureTime   uint32        `json:"captureTime"` // Unix epoch seconds
	ChannelID     pnm.ChannelID `json:"channelId"`   // pnm.NoChannel when absent
	Device        DeviceDetails `json:"device"`
	Payload       []byte        `json:"payload,omitempty"` // raw capture bytes
	MAC           pnm.MAC       `json:"mac"`
}

// clone returns e with its own copy of the payload.
func (e Entry) clone() Entry {
	e.Payload = slices.Clone(e.Payload)
	return e
}

func (e Entry) Time() time.Time {
	return time.Unix(int64(e.CaptureTime), 0).UTC()
}

// EntryFromRecord catalogues a decoded capture together with the raw bytes it was decoded from.
func EntryFromRecord(rec *pnm.CaptureRecord, fileName string, raw []byte, device DeviceDetails) Entry {
	return Entry{
		TransactionID: rec.TransactionID,
		FileName:      fileName,
		FileType:      rec.Header.FileType,
		CaptureTime:   rec.Header.CaptureTime,
		ChannelID:     rec.Header.ChannelID,
		Device:        device,
		Payload:       raw,
		MAC:           rec.SourceMAC,
	}
}

// NewTransactionID returns a random transaction id.
func NewTransactionID() string {
	return uuid.NewString()
}
