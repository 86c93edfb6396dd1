package controllers

import (
	"fmt"

	"github.com/amaumene/jellysync/internal/models"
	"github.com/amaumene/jellysync/internal/services/jellyfin"
	"github.com/amaumene/jellysync/internal/utils"
	"github.com/sirupsen/logrus"
)

// directPlayContainers are containers known safe to hand to the player
// unmodified.
var directPlayContainers = map[string]struct{}{
	"mp4":  {},
	"m4v":  {},
	"mov":  {},
	"mkv":  {},
	"webm": {},
}

const (
	fallbackVideoCodec = "h264"
	fallbackAudioCodec = "aac"
	codecCopy          = "copy"
)

// PlaybackOptions are the caller's track selections. Nil indexes mean "let
// the negotiator pick" and are omitted from the resulting locator.
type PlaybackOptions struct {
	AudioStreamIndex    *int
	SubtitleStreamIndex *int
}

// PlaybackDecision is the one-shot outcome of negotiation: how to deliver
// the source and the locator to hand to the renderer.
type PlaybackDecision struct {
	Method          models.DeliveryMethod `json:"method"`
	URL             string                `json:"url"`
	VideoCodec      string                `json:"video_codec,omitempty"`
	AudioCodec      string                `json:"audio_codec,omitempty"`
	StartPositionMs int64                 `json:"start_position_ms"`
}

// PlaybackController decides direct-play vs. transcoded delivery for a cached
// entry's primary source and constructs the stream locator.
type PlaybackController struct {
	db      *models.Database
	session jellyfin.SessionStore
	codecs  utils.CodecSupport
	logger  *logrus.Logger
}

// NewPlaybackController creates a new playback controller
func NewPlaybackController(db *models.Database, session jellyfin.SessionStore, codecs utils.CodecSupport, logger *logrus.Logger) *PlaybackController {
	return &PlaybackController{
		db:      db,
		session: session,
		codecs:  codecs,
		logger:  logger,
	}
}

// Negotiate resolves the entry's primary source and stream metadata from the
// cache and decides how it should be delivered. The entry must have been
// refreshed at detail level first.
func (c *PlaybackController) Negotiate(entryID string, opts PlaybackOptions) (*PlaybackDecision, error) {
	sess, err := c.session.GetSession()
	if err != nil {
		return nil, &models.AuthError{Reason: err.Error()}
	}

	entry, err := c.db.GetEntry(entryID)
	if err != nil {
		return nil, err
	}
	sources, err := c.db.GetSourcesForEntry(entryID)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, &models.ItemNotFoundError{ID: entryID}
	}
	source := sources[0]

	streams, err := c.db.GetStreamsForSource(source.ID)
	if err != nil {
		return nil, err
	}

	video := firstStreamOfType(streams, models.StreamTypeVideo)
	audio, audioIndex := selectAudioStream(streams, opts.AudioStreamIndex)

	decision := &PlaybackDecision{
		StartPositionMs: entry.UserData.ResumePositionMs(),
	}

	if c.canDirectPlay(source, video, audio) {
		decision.Method = models.DeliveryDirectPlay
		decision.URL = directPlayURL(sess, entryID, source.ID)
		c.logger.WithFields(logrus.Fields{
			"entry_id":  entryID,
			"source_id": source.ID,
			"container": source.Container,
		}).Debug("Negotiated direct play")
		return decision, nil
	}

	if !source.SupportsTranscoding {
		return nil, &models.UnknownError{Message: "Transcoding required but not supported by the server"}
	}

	decision.Method = models.DeliveryTranscode
	decision.VideoCodec = codecCopy
	if video == nil || !c.codecs.SupportsVideoCodec(video.Codec) {
		decision.VideoCodec = fallbackVideoCodec
	}
	decision.AudioCodec = codecCopy
	if audio == nil || !c.codecs.SupportsAudioCodec(audio.Codec) {
		decision.AudioCodec = fallbackAudioCodec
	}
	decision.URL = transcodeURL(sess, entryID, source.ID, decision.VideoCodec, decision.AudioCodec, audioIndex, opts.SubtitleStreamIndex)

	c.logger.WithFields(logrus.Fields{
		"entry_id":    entryID,
		"source_id":   source.ID,
		"video_codec": decision.VideoCodec,
		"audio_codec": decision.AudioCodec,
	}).Debug("Negotiated transcode")
	return decision, nil
}

// canDirectPlay checks the server capability flag, the container allow-list
// and the local decode oracle.
func (c *PlaybackController) canDirectPlay(source *models.Source, video, audio *models.Stream) bool {
	if !source.SupportsDirectPlay {
		return false
	}
	if _, ok := directPlayContainers[source.Container]; !ok {
		return false
	}
	if video == nil || !c.codecs.SupportsVideoCodec(video.Codec) {
		return false
	}
	if audio != nil && !c.codecs.SupportsAudioCodec(audio.Codec) {
		return false
	}
	return true
}

func firstStreamOfType(streams []*models.Stream, streamType models.StreamType) *models.Stream {
	for _, s := range streams {
		if s.Type == streamType {
			return s
		}
	}
	return nil
}

// selectAudioStream picks the audio track the caller asked for when it
// exists, falling back to the first audio stream. The returned index is
// non-nil only when the caller's explicit selection was honored; only then
// does it appear in the locator.
func selectAudioStream(streams []*models.Stream, requested *int) (*models.Stream, *int) {
	if requested != nil {
		for _, s := range streams {
			if s.Type == models.StreamTypeAudio && s.Index == *requested {
				return s, requested
			}
		}
	}
	return firstStreamOfType(streams, models.StreamTypeAudio), nil
}

func directPlayURL(sess *jellyfin.Session, itemID, sourceID string) string {
	return fmt.Sprintf("%s/Videos/%s/stream?static=true&mediaSourceId=%s&api_key=%s",
		sess.ServerURL, itemID, sourceID, sess.AccessToken)
}

func transcodeURL(sess *jellyfin.Session, itemID, sourceID, videoCodec, audioCodec string, audioIndex, subtitleIndex *int) string {
	locator := fmt.Sprintf("%s/Videos/%s/master.m3u8?MediaSourceId=%s&api_key=%s&VideoCodec=%s&AudioCodec=%s&TranscodingContainer=ts&TranscodingProtocol=hls",
		sess.ServerURL, itemID, sourceID, sess.AccessToken, videoCodec, audioCodec)
	if audioIndex != nil {
		locator += fmt.Sprintf("&AudioStreamIndex=%d", *audioIndex)
	}
	if subtitleIndex != nil {
		locator += fmt.Sprintf("&SubtitleStreamIndex=%d", *subtitleIndex)
	}
	return locator
}
