package services

import (
	"encoding/json"
	"log"
	"os/exec"
	"strconv"
	"sync"

	"arkive/types"
)

// AudioProber extracts stream metadata from audio files via an external
// analysis tool. Implementations must degrade gracefully: an unavailable
// tool or a failed probe is never a fatal condition.
type AudioProber interface {
	// Available reports whether the probe tool can be invoked at all.
	Available() bool
	// Probe analyzes one file. A nil result with a nil error means the
	// file had no usable audio stream.
	Probe(path string) (*types.AudioMetadata, error)
}

// ffprobeProber shells out to ffprobe for structured format/stream output.
type ffprobeProber struct {
	once      sync.Once
	available bool
}

// NewFFProbeProber creates a prober backed by the ffprobe binary.
// Availability is checked once, on first use.
func NewFFProbeProber() AudioProber {
	return &ffprobeProber{}
}

func (p *ffprobeProber) Available() bool {
	p.once.Do(func() {
		if err := exec.Command("ffprobe", "-version").Run(); err != nil {
			log.Printf("ffprobe not available, audio metadata disabled: %v", err)
			return
		}
		p.available = true
	})
	return p.available
}

func (p *ffprobeProber) Probe(path string) (*types.AudioMetadata, error) {
	cmd := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)

	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	return parseProbeOutput(output)
}

// probeOutput mirrors the subset of ffprobe's JSON document we consume.
// Numeric fields arrive as strings.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType     string `json:"codec_type"`
		CodecName     string `json:"codec_name"`
		SampleRate    string `json:"sample_rate"`
		Channels      int    `json:"channels"`
		ChannelLayout string `json:"channel_layout"`
		BitRate       string `json:"bit_rate"`
	} `json:"streams"`
}

// parseProbeOutput converts ffprobe JSON into AudioMetadata. Container-level
// duration and bit rate are used as the baseline; the first audio stream
// overrides the bit rate (stream-level is more accurate) and supplies
// sample rate, channels and codec. Returns nil when no audio stream exists.
func parseProbeOutput(data []byte) (*types.AudioMetadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	meta := &types.AudioMetadata{}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		meta.Duration = d
	}
	if b, err := strconv.Atoi(out.Format.BitRate); err == nil {
		meta.Bitrate = b
	}

	found := false
	for _, stream := range out.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		found = true
		meta.Codec = stream.CodecName
		if rate, err := strconv.Atoi(stream.SampleRate); err == nil {
			meta.SampleRate = rate
		}
		if stream.Channels > 0 {
			meta.Channels = stream.Channels
		} else {
			meta.ChannelLayout = stream.ChannelLayout
		}
		if b, err := strconv.Atoi(stream.BitRate); err == nil {
			meta.Bitrate = b
		}
		// Only the first audio stream counts.
		break
	}

	if !found {
		return nil, nil
	}
	return meta, nil
}
