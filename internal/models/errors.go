package models

import "errors"

// Store-level sentinels shared by the persistence packages and their callers.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrSlotTaken      = errors.New("slot already booked")
	ErrStaleStatus    = errors.New("booking status changed concurrently")
)
