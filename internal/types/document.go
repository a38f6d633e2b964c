// Package types defines shared types used across the application
package types

import "time"

// Document is one file observed in the landing zone.
// Body is passed through to the destination byte for byte.
type Document struct {
	Name string
	Body []byte
	Meta *DocumentMeta
}

// DocumentMeta holds source bookkeeping needed to acknowledge a document.
// Kafka documents fill Topic/Partition/Offset; landing directory documents fill
// Path plus the Size and ModTime of the file version that was read.
type DocumentMeta struct {
	Source     string
	Topic      string
	Partition  int
	Offset     int64
	Path       string
	Size       int64
	ModTime    time.Time
	ReceivedAt time.Time
}
