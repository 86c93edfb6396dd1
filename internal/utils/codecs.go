package utils

import "strings"

// CodecSupport reports whether the local platform can decode a codec. The
// playback negotiator consults it to choose between direct play and
// transcoding.
type CodecSupport interface {
	SupportsVideoCodec(codec string) bool
	SupportsAudioCodec(codec string) bool
}

// DefaultCodecSupport is a static allow-list oracle.
type DefaultCodecSupport struct {
	video map[string]struct{}
}

// NewDefaultCodecSupport builds an oracle over the broadly decodable video
// codecs plus any extras the caller knows its platform handles.
func NewDefaultCodecSupport(extraVideo ...string) *DefaultCodecSupport {
	video := map[string]struct{}{
		"h264": {},
		"vp8":  {},
		"vp9":  {},
	}
	for _, codec := range extraVideo {
		video[strings.ToLower(codec)] = struct{}{}
	}
	return &DefaultCodecSupport{video: video}
}

func (c *DefaultCodecSupport) SupportsVideoCodec(codec string) bool {
	_, ok := c.video[strings.ToLower(codec)]
	return ok
}

// SupportsAudioCodec always reports supported.
// TODO: probe the platform's audio decoders instead of assuming support; an
// undecodable audio track currently slips through as direct play.
func (c *DefaultCodecSupport) SupportsAudioCodec(codec string) bool {
	return true
}
