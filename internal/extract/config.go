package extract

import "time"

const mib = 1 << 20

// Config holds the acceptance thresholds and size limits of every chain.
type Config struct {
	// MinTextChars is the length a method's text must exceed to be accepted.
	MinTextChars int
	// AudioMaxBytes is the largest video whose audio track is sent for transcription.
	AudioMaxBytes int64
	// AudioSegmentBytes bounds any segment actually uploaded for transcription.
	AudioSegmentBytes int64
	MinFrameChars     int
	FrameCount        int
	TranscribeLang    string
	FetchTimeout      time.Duration
	MaxSourceBytes    int64
	// FetchAllowHosts limits which hosts http(s) references may be fetched from.
	// Entries match the host exactly; a leading dot also matches subdomains.
	// Empty allows any host.
	FetchAllowHosts []string
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinTextChars:      100,
		AudioMaxBytes:     25 * mib,
		AudioSegmentBytes: 24 * mib,
		MinFrameChars:     10,
		FrameCount:        8,
		TranscribeLang:    "en",
		FetchTimeout:      60 * time.Second,
		MaxSourceBytes:    500 * mib,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinTextChars <= 0 {
		c.MinTextChars = def.MinTextChars
	}
	if c.AudioMaxBytes <= 0 {
		c.AudioMaxBytes = def.AudioMaxBytes
	}
	if c.AudioSegmentBytes <= 0 || c.AudioSegmentBytes > c.AudioMaxBytes {
		c.AudioSegmentBytes = min(def.AudioSegmentBytes, c.AudioMaxBytes)
	}
	if c.MinFrameChars <= 0 {
		c.MinFrameChars = def.MinFrameChars
	}
	if c.FrameCount <= 0 {
		c.FrameCount = def.FrameCount
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = def.FetchTimeout
	}
	if c.MaxSourceBytes <= 0 {
		c.MaxSourceBytes = def.MaxSourceBytes
	}
	return c
}
