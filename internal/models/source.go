package models

import "strconv"

// Source is one playable rendition of an entry. Sources are not individually
// addressable across fetches, so a detail refresh always replaces the whole
// topology for an entry.
type Source struct {
	ID      string `boltholdKey:"ID"`
	EntryID string `boltholdIndex:"EntryID"`

	// Ordinal preserves the order sources arrived from the server; the
	// source at ordinal 0 is the primary playback candidate.
	Ordinal int

	Container           string
	SupportsDirectPlay  bool
	SupportsTranscoding bool
}

// Stream is one track within a source.
type Stream struct {
	Key      string `boltholdKey:"Key"` // sourceID + "/" + index
	SourceID string `boltholdIndex:"SourceID"`

	Index        int
	Type         StreamType
	Codec        string
	Language     string
	DisplayTitle string
	IsDefault    bool
	IsForced     bool

	// Audio only
	Channels int

	// Video only
	Width  int
	Height int
}

func streamKey(sourceID string, index int) string {
	return sourceID + "/" + strconv.Itoa(index)
}
