// Package audio loads the sample a frontend plays while the CHIP-8 sound
// timer is running. Nothing here synthesizes sound; the sample comes from a
// user-supplied WAV or MP3 file.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

var ErrUnsupportedFormat = errors.New("unsupported sample format")

// Sample is mono signed 16-bit PCM.
type Sample struct {
	Rate int
	Data []int16
}

// Bytes returns the sample as little-endian 16-bit PCM.
func (s *Sample) Bytes() []byte {
	out := make([]byte, len(s.Data)*2)
	for i, v := range s.Data {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func (s *Sample) Duration() time.Duration {
	if s.Rate == 0 {
		return 0
	}
	return time.Duration(len(s.Data)) * time.Second / time.Duration(s.Rate)
}

// Load decodes the file at path, choosing the decoder by extension.
func Load(path string) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sample %q: %w", path, err)
	}
	defer f.Close()

	var s *Sample

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		s, err = decodeWAV(f)
	case ".mp3":
		s, err = decodeMP3(f)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedFormat, ext)
	}

	if err != nil {
		return nil, fmt.Errorf("unable to decode sample %q: %w", path, err)
	}

	slog.Debug("audio: load sample", "path", path, "rate", s.Rate, "duration", s.Duration())
	return s, nil
}

func decodeWAV(r io.ReadSeeker) (*Sample, error) {
	dec := wav.NewDecoder(r)
	if dec == nil || !dec.IsValidFile() {
		return nil, errors.New("wav: not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}

	return fromIntBuffer(buf, int(dec.BitDepth))
}

// fromIntBuffer keeps the first channel and rescales it to 16 bits.
func fromIntBuffer(buf *goaudio.IntBuffer, bitDepth int) (*Sample, error) {
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, errors.New("wav: missing format")
	}

	channels := buf.Format.NumChannels
	s := &Sample{
		Rate: buf.Format.SampleRate,
		Data: make([]int16, 0, len(buf.Data)/channels),
	}

	for i := 0; i < len(buf.Data); i += channels {
		v := buf.Data[i]

		switch bitDepth {
		case 8:
			// 8-bit wav is unsigned
			v = (v - 128) << 8
		case 16:
		case 24:
			v >>= 8
		case 32:
			v >>= 16
		default:
			return nil, fmt.Errorf("wav: %d-bit samples: %w", bitDepth, ErrUnsupportedFormat)
		}

		s.Data = append(s.Data, int16(v))
	}

	return s, nil
}

// decodeMP3 keeps the left channel. go-mp3 always produces 16-bit stereo.
func decodeMP3(r io.Reader) (*Sample, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	const frameSize = 4
	s := &Sample{
		Rate: dec.SampleRate(),
		Data: make([]int16, 0, len(pcm)/frameSize),
	}

	for i := 0; i+frameSize <= len(pcm); i += frameSize {
		s.Data = append(s.Data, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}

	return s, nil
}
