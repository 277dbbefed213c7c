package models

import (
	"encoding/json"
	"strings"
)

// Record is one item of a Zoom list response (a participant or a registrant).
// The upstream JSON is kept byte-for-byte; only the email is read out of it.
type Record struct {
	Raw   json.RawMessage
	Email string
}

// NewRecord extracts the email from raw and keeps raw as-is.
func NewRecord(raw json.RawMessage) (Record, error) {
	var head struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Record{}, err
	}
	return Record{Raw: raw, Email: head.Email}, nil
}

// EmailKey is the case-insensitive identity used to match registrants to participants.
func (r Record) EmailKey() string {
	return strings.ToLower(r.Email)
}

// MarshalJSON writes the upstream item unchanged.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r.Raw) == 0 {
		return []byte("null"), nil
	}
	return r.Raw, nil
}

// UnmarshalJSON keeps the item and re-reads its email.
func (r *Record) UnmarshalJSON(b []byte) error {
	rec, err := NewRecord(append(json.RawMessage(nil), b...))
	if err != nil {
		return err
	}
	*r = rec
	return nil
}
