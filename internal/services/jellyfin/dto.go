package jellyfin

// itemsResponse is the paginated envelope most item endpoints return. The
// Latest endpoint is the exception: it returns a bare item array.
type itemsResponse struct {
	Items            []RawItem `json:"Items"`
	TotalRecordCount int       `json:"TotalRecordCount"`
}

// RawItem is the list-shape projection of one catalog item: identity, display
// and relational fields, embedded user data and the limited image tags list
// responses carry. Detail-only data (overview, sources, streams) is absent.
type RawItem struct {
	ID       string `json:"Id"`
	Name     string `json:"Name"`
	SortName string `json:"SortName"`
	Type     string `json:"Type"`

	ParentID          string `json:"ParentId"`
	SeriesID          string `json:"SeriesId"`
	SeriesName        string `json:"SeriesName"`
	SeasonID          string `json:"SeasonId"`
	ParentIndexNumber *int   `json:"ParentIndexNumber"` // season number
	IndexNumber       *int   `json:"IndexNumber"`       // episode number

	ProductionYear int    `json:"ProductionYear"`
	PremiereDate   string `json:"PremiereDate"`
	EndDate        string `json:"EndDate"`

	ImageTags             RawImageTags `json:"ImageTags"`
	BackdropImageTags     []string     `json:"BackdropImageTags"`
	ParentThumbImageTag   string       `json:"ParentThumbImageTag"`
	SeriesPrimaryImageTag string       `json:"SeriesPrimaryImageTag"`

	UserData *RawUserData `json:"UserData"`
}

// RawImageTags contains image tag IDs per image role
type RawImageTags struct {
	Primary string `json:"Primary"`
	Thumb   string `json:"Thumb"`
	Banner  string `json:"Banner"`
	Logo    string `json:"Logo"`
}

// RawUserData contains user-specific state for an item
type RawUserData struct {
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks"`
	PlayCount             int   `json:"PlayCount"`
	IsFavorite            bool  `json:"IsFavorite"`
	Played                bool  `json:"Played"`
}

// RawItemDetail is the full detail projection, including the source/stream
// topology needed for playback negotiation.
type RawItemDetail struct {
	RawItem

	Overview        string           `json:"Overview"`
	Taglines        []string         `json:"Taglines"`
	CommunityRating float64          `json:"CommunityRating"`
	OfficialRating  string           `json:"OfficialRating"`
	RunTimeTicks    int64            `json:"RunTimeTicks"`
	Container       string           `json:"Container"`
	MediaSources    []RawMediaSource `json:"MediaSources"`
}

// RawMediaSource is one playable rendition of an item
type RawMediaSource struct {
	ID                  string           `json:"Id"`
	Container           string           `json:"Container"`
	SupportsDirectPlay  bool             `json:"SupportsDirectPlay"`
	SupportsTranscoding bool             `json:"SupportsTranscoding"`
	MediaStreams        []RawMediaStream `json:"MediaStreams"`
}

// RawMediaStream is one track within a media source
type RawMediaStream struct {
	Index        int    `json:"Index"`
	Type         string `json:"Type"`
	Codec        string `json:"Codec"`
	Language     string `json:"Language"`
	DisplayTitle string `json:"DisplayTitle"`
	IsDefault    bool   `json:"IsDefault"`
	IsForced     bool   `json:"IsForced"`
	Channels     int    `json:"Channels"`
	Width        int    `json:"Width"`
	Height       int    `json:"Height"`
}
