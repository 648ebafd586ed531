package pnm

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedHeader is returned when a capture is shorter than the fixed header.
	ErrMalformedHeader = errors.New("malformed header")

	// ErrUnknownFileType is returned when the file-type tag matches no known type.
	ErrUnknownFileType = errors.New("unknown file type")

	// ErrPayloadTypeMismatch is returned when a payload decoder is handed a type it does not decode.
	ErrPayloadTypeMismatch = errors.New("payload type mismatch")

	// ErrTruncatedPayload is returned when declared or implied records do not fit in the payload.
	ErrTruncatedPayload = errors.New("truncated payload")
)

// DecodeError carries the position and size context of a failed decode. It
// unwraps to one of the sentinel errors above.
type DecodeError struct {
	Err      error
	FileType FileType
	Field    string
	Offset   int // relative to the start of the buffer handed to the decoder
	Need     int
	Have     int
}

func (e *DecodeError) Error() string {
	if e.FileType.Known() {
		return fmt.Sprintf("%s: %s: %s needs %d bytes at offset %d, %d available",
			e.Err, e.FileType, e.Field, e.Need, e.Offset, e.Have)
	}
	return fmt.Sprintf("%s: %s needs %d bytes at offset %d, %d available",
		e.Err, e.Field, e.Need, e.Offset, e.Have)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TypeMismatchError names both sides of a routing error between the header and a payload decoder.
type TypeMismatchError struct {
	Expected FileType
	Actual   FileType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: decoder expects %s, got %s", ErrPayloadTypeMismatch, e.Expected, e.Actual)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrPayloadTypeMismatch
}

// ErrorKind maps a decode error onto a short stable label, suitable for metrics and log attributes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrUnknownFileType):
		return "unknown_file_type"
	case errors.Is(err, ErrPayloadTypeMismatch):
		return "payload_type_mismatch"
	case errors.Is(err, ErrTruncatedPayload):
		return "truncated_payload"
	default:
		return "other"
	}
}
