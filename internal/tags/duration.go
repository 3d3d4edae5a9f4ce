package tags

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/abema/go-mp4"
	"github.com/go-audio/wav"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	"github.com/tcolgate/mp3"
)

var (
	errNoDurationProbe = errors.New("no duration probe for container")
	errNoAudioStream   = errors.New("no readable audio stream")
)

// probeDuration reads the stream length from an in-memory buffer using the
// container decoder matching mimeType.
func probeDuration(mimeType string, data []byte) (time.Duration, error) {
	switch mimeType {
	case "audio/mpeg":
		return mp3Duration(data)
	case "audio/flac":
		return flacDuration(data)
	case "audio/wav":
		return wavDuration(data)
	case "audio/ogg":
		return oggDuration(data)
	case "audio/mp4":
		return mp4Duration(data)
	default:
		return 0, errNoDurationProbe
	}
}

// An MPEG stream is only trusted when its first frame starts close to the
// beginning of the audio region and decoded frames cover most of it. Random
// bytes contain plausible sync words.
const (
	maxMPEGLeadingJunk = 2048
	minMPEGFrames      = 4
	minMPEGCoverage    = 0.9
)

func mp3Duration(data []byte) (time.Duration, error) {
	audio := mpegAudioRegion(data)
	if len(audio) == 0 {
		return 0, fmt.Errorf("%w: no mpeg audio after tags", errNoAudioStream)
	}

	decoder := mp3.NewDecoder(bytes.NewReader(audio))

	var (
		frame   mp3.Frame
		skipped int
		leading int
		covered int
		frames  int
		total   time.Duration
	)
	for {
		if err := decoder.Decode(&frame, &skipped); err != nil {
			break
		}
		if frames == 0 {
			leading = skipped
		}
		total += frame.Duration()
		covered += frame.Size()
		frames++
	}

	switch {
	case frames < minMPEGFrames:
		return 0, fmt.Errorf("%w: %d mpeg frames", errNoAudioStream, frames)
	case leading > maxMPEGLeadingJunk:
		return 0, fmt.Errorf("%w: first mpeg frame at byte %d", errNoAudioStream, leading)
	case float64(covered) < minMPEGCoverage*float64(len(audio)):
		return 0, fmt.Errorf("%w: mpeg frames cover %d of %d bytes", errNoAudioStream, covered, len(audio))
	}

	return total, nil
}

// mpegAudioRegion strips a leading ID3v2 tag and a trailing ID3v1 tag. A
// tag that claims more bytes than the file holds leaves nothing.
func mpegAudioRegion(data []byte) []byte {
	if len(data) >= 10 && string(data[:3]) == "ID3" {
		size := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
		end := 10 + size
		if data[5]&0x10 != 0 {
			end += 10
		}
		if end >= len(data) {
			return nil
		}
		data = data[end:]
	}

	if len(data) >= 128 && string(data[len(data)-128:len(data)-125]) == "TAG" {
		data = data[:len(data)-128]
	}

	return data
}

func flacDuration(data []byte) (time.Duration, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("parse flac stream: %w", err)
	}
	defer stream.Close()

	if stream.Info == nil || stream.Info.SampleRate == 0 || stream.Info.NSamples == 0 {
		return 0, errors.New("flac stream info has no length")
	}

	return samplesToDuration(int64(stream.Info.NSamples), int64(stream.Info.SampleRate)), nil
}

func wavDuration(data []byte) (time.Duration, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return 0, errors.New("invalid wav file")
	}

	duration, err := decoder.Duration()
	if err != nil {
		return 0, fmt.Errorf("wav duration: %w", err)
	}

	return duration, nil
}

func oggDuration(data []byte) (time.Duration, error) {
	reader, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("open ogg vorbis: %w", err)
	}

	if reader.SampleRate() <= 0 || reader.Length() <= 0 {
		return 0, errors.New("ogg stream has no length")
	}

	return samplesToDuration(reader.Length(), int64(reader.SampleRate())), nil
}

func mp4Duration(data []byte) (time.Duration, error) {
	info, err := mp4.Probe(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("probe mp4: %w", err)
	}

	for _, track := range info.Tracks {
		if track.Codec == mp4.CodecMP4A && track.Timescale > 0 && track.Duration > 0 {
			return samplesToDuration(int64(track.Duration), int64(track.Timescale)), nil
		}
	}

	if info.Timescale == 0 || info.Duration == 0 {
		return 0, errors.New("mp4 movie header has no duration")
	}

	return samplesToDuration(int64(info.Duration), int64(info.Timescale)), nil
}

func samplesToDuration(samples int64, rate int64) time.Duration {
	seconds := samples / rate
	remainder := samples % rate
	return time.Duration(seconds)*time.Second + time.Duration(remainder)*time.Second/time.Duration(rate)
}
