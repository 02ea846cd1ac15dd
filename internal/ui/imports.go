package ui

import "github.com/Rounak-Paul/gbzip/internal/event"

// Event is aliased so presenter callers deal with a single package.
type Event = event.Event

// Re-export event types for convenience.
const (
	ScanStarted      = event.ScanStarted
	ScanComplete     = event.ScanComplete
	FileIgnored      = event.FileIgnored
	CompressStarted  = event.CompressStarted
	FileCompressed   = event.FileCompressed
	CompressFallback = event.CompressFallback
	CompressComplete = event.CompressComplete
	FileAdded        = event.FileAdded
	DirAdded         = event.DirAdded
	FileFailed       = event.FileFailed
	ArchiveDone      = event.ArchiveDone
	EntryExtracted   = event.EntryExtracted
	ExtractDone      = event.ExtractDone
	EntryDeleted     = event.EntryDeleted
	VerifyStarted    = event.VerifyStarted
	VerifyOK         = event.VerifyOK
	VerifyFailed     = event.VerifyFailed
)
