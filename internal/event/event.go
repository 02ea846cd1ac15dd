package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	ScanStarted Type = iota + 1
	ScanComplete
	FileIgnored
	CompressStarted
	FileCompressed
	CompressFallback
	CompressComplete
	FileAdded
	DirAdded
	FileFailed
	ArchiveDone
	EntryExtracted
	ExtractDone
	EntryDeleted
	VerifyStarted
	VerifyOK
	VerifyFailed
)

var typeNames = [...]string{
	ScanStarted:      "ScanStarted",
	ScanComplete:     "ScanComplete",
	FileIgnored:      "FileIgnored",
	CompressStarted:  "CompressStarted",
	FileCompressed:   "FileCompressed",
	CompressFallback: "CompressFallback",
	CompressComplete: "CompressComplete",
	FileAdded:        "FileAdded",
	DirAdded:         "DirAdded",
	FileFailed:       "FileFailed",
	ArchiveDone:      "ArchiveDone",
	EntryExtracted:   "EntryExtracted",
	ExtractDone:      "ExtractDone",
	EntryDeleted:     "EntryDeleted",
	VerifyStarted:    "VerifyStarted",
	VerifyOK:         "VerifyOK",
	VerifyFailed:     "VerifyFailed",
}

func (t Type) String() string {
	if t > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from the engine.
type Event struct {
	Type      Type
	Timestamp time.Time
	Path      string // archive-relative path
	Size      int64  // entry size or bytes processed
	Total     int64  // total entries (ScanComplete, CompressStarted)
	TotalSize int64  // total bytes (ScanComplete, CompressStarted)
	Error     error
	WorkerID  int
}
