package models

// ItemType discriminates catalog entries
type ItemType string

const (
	ItemTypeMovie      ItemType = "Movie"
	ItemTypeSeries     ItemType = "Series"
	ItemTypeSeason     ItemType = "Season"
	ItemTypeEpisode    ItemType = "Episode"
	ItemTypeCollection ItemType = "CollectionFolder"
)

// StreamType discriminates tracks within a media source
type StreamType string

const (
	StreamTypeVideo    StreamType = "Video"
	StreamTypeAudio    StreamType = "Audio"
	StreamTypeSubtitle StreamType = "Subtitle"
)

// DeliveryMethod is how a source should be handed to the player
type DeliveryMethod string

const (
	DeliveryDirectPlay DeliveryMethod = "directplay"
	DeliveryTranscode  DeliveryMethod = "transcode"
)

// TicksPerMillisecond converts the catalog API's 100ns tick values to milliseconds
const TicksPerMillisecond = 10_000
