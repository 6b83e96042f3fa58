package models

import (
	"crypto/sha256"
	"encoding/hex"
)

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

func (q Quality) IsValid() bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh:
		return true
	}
	return false
}

// JobKey is the internal dedup identity of an export. It never leaves the process.
type JobKey string

// NewJobKey hashes the (source, quality) pair. Equal inputs always give equal keys.
func NewJobKey(sourceURL string, quality Quality) JobKey {
	h := sha256.New()
	h.Write([]byte(sourceURL))
	h.Write([]byte{0})
	h.Write([]byte(quality))
	return JobKey(hex.EncodeToString(h.Sum(nil)))
}

// Variant is one rendition picked out of a master playlist.
type Variant struct {
	URI       string `json:"-"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bandwidth uint32 `json:"bandwidth"`
}

func (v Variant) Pixels() int {
	return v.Width * v.Height
}
