package controllers

import (
	"time"

	"github.com/amaumene/jellysync/internal/models"
	"github.com/amaumene/jellysync/internal/services/jellyfin"
)

// rawToEntry maps a fetched item's list-shape fields onto an entry's core
// fields. Pure conversion, no I/O.
func rawToEntry(item jellyfin.RawItem) *models.Entry {
	entry := &models.Entry{
		ID:             item.ID,
		Type:           models.ItemType(item.Type),
		Name:           item.Name,
		SortName:       item.SortName,
		ParentID:       item.ParentID,
		SeriesID:       item.SeriesID,
		SeriesName:     item.SeriesName,
		SeasonID:       item.SeasonID,
		SeasonNumber:   item.ParentIndexNumber,
		EpisodeNumber:  item.IndexNumber,
		ProductionYear: item.ProductionYear,
		PremiereDate:   parseDate(item.PremiereDate),
		EndDate:        parseDate(item.EndDate),
		Images: models.ImageTagSet{
			Primary:       item.ImageTags.Primary,
			Thumb:         item.ImageTags.Thumb,
			Logo:          item.ImageTags.Logo,
			ParentThumb:   item.ParentThumbImageTag,
			SeriesPrimary: item.SeriesPrimaryImageTag,
		},
	}
	if len(item.BackdropImageTags) > 0 {
		entry.Images.Backdrop = item.BackdropImageTags[0]
	}
	if item.UserData != nil {
		entry.UserData = models.UserData{
			Played:                item.UserData.Played,
			PlayCount:             item.UserData.PlayCount,
			IsFavorite:            item.UserData.IsFavorite,
			PlaybackPositionTicks: item.UserData.PlaybackPositionTicks,
		}
	}
	return entry
}

// rawDetailToRecords splits a detail fetch into the records the store
// replaces together: the detail row, the source rows in server order and
// each source's streams.
func rawDetailToRecords(detail *jellyfin.RawItemDetail) (*models.Detail, []*models.Source, map[string][]*models.Stream) {
	d := &models.Detail{
		EntryID:         detail.ID,
		Overview:        detail.Overview,
		CommunityRating: detail.CommunityRating,
		OfficialRating:  detail.OfficialRating,
		RunTimeTicks:    detail.RunTimeTicks,
		Container:       detail.Container,
	}
	if len(detail.Taglines) > 0 {
		d.Tagline = detail.Taglines[0]
	}

	sources := make([]*models.Source, 0, len(detail.MediaSources))
	streamsBySource := make(map[string][]*models.Stream, len(detail.MediaSources))
	for _, raw := range detail.MediaSources {
		source := &models.Source{
			ID:                  raw.ID,
			EntryID:             detail.ID,
			Container:           raw.Container,
			SupportsDirectPlay:  raw.SupportsDirectPlay,
			SupportsTranscoding: raw.SupportsTranscoding,
		}
		sources = append(sources, source)

		streams := make([]*models.Stream, 0, len(raw.MediaStreams))
		for _, rs := range raw.MediaStreams {
			streams = append(streams, &models.Stream{
				SourceID:     raw.ID,
				Index:        rs.Index,
				Type:         models.StreamType(rs.Type),
				Codec:        rs.Codec,
				Language:     rs.Language,
				DisplayTitle: rs.DisplayTitle,
				IsDefault:    rs.IsDefault,
				IsForced:     rs.IsForced,
				Channels:     rs.Channels,
				Width:        rs.Width,
				Height:       rs.Height,
			})
		}
		streamsBySource[raw.ID] = streams
	}
	return d, sources, streamsBySource
}

func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil
	}
	return &t
}
