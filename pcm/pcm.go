// This file is part of agbsound.
//
// agbsound is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// agbsound is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with agbsound.  If not, see <https://www.gnu.org/licenses/>.

// Package pcm loads instrument sample data from audio files on disk.
//
// DirectSound voices reference recorded samples rather than synthesized
// waveforms. The recordings are WAV files, optionally carrying loop points
// and a root key in a sampler chunk, or MP3 files for the rare voice sourced
// from a compressed recording. Whatever the source, the loaded sample is
// mono 16-bit, taking the left channel of stereo recordings.
package pcm

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/hautbois/agbsound/curated"
	"github.com/hautbois/agbsound/logger"
)

const logTag = "pcm"

// sentinel errors for the pcm package
const (
	LoadError         = "pcm: %s: %v"
	UnsupportedFormat = "pcm: %s: unsupported format"
)

// Sample is mono 16-bit PCM loaded from an audio file. RootKey is -1 when
// the file does not specify a unity note. LoopStart is -1 when the file
// carries no loop; when a loop is present LoopEnd is one past the last
// looped sample.
type Sample struct {
	Data       []int16
	SampleRate int
	RootKey    int
	LoopStart  int
	LoopEnd    int
}

// Load reads the audio file at path. The file format is chosen by extension:
// .wav and .mp3 are supported.
func Load(path string) (*Sample, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return loadWAV(path)
	case ".mp3":
		return loadMP3(path)
	}
	return nil, curated.Errorf(UnsupportedFormat, path)
}

func loadWAV(path string) (*Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, curated.Errorf(LoadError, path, err)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, curated.Errorf(LoadError, path, "not a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, curated.Errorf(LoadError, path, err)
	}

	s := &Sample{
		SampleRate: int(dec.SampleRate),
		RootKey:    -1,
		LoopStart:  -1,
		LoopEnd:    -1,
	}

	// first channel only of the data stream
	numChans := int(dec.NumChans)
	if numChans < 1 {
		numChans = 1
	}
	s.Data = make([]int16, 0, len(buf.Data)/numChans)
	for i := 0; i < len(buf.Data); i += numChans {
		s.Data = append(s.Data, convertSample(buf.Data[i], int(dec.BitDepth)))
	}

	// the data chunk has been consumed so a second decoder is used to walk
	// the chunk list again for the sampler metadata
	meta := wav.NewDecoder(bytes.NewReader(data))
	meta.ReadMetadata()
	if meta.Metadata != nil && meta.Metadata.SamplerInfo != nil {
		si := meta.Metadata.SamplerInfo
		s.RootKey = int(si.MIDIUnityNote)
		if len(si.Loops) > 0 {
			// the sampler chunk's loop end is the last looped sample,
			// converted here to the exclusive form
			s.LoopStart = int(si.Loops[0].Start)
			s.LoopEnd = int(si.Loops[0].End) + 1
		}
		logger.Logf(logger.Allow, logTag, "%s: root key %d, loop %d-%d", path, s.RootKey, s.LoopStart, s.LoopEnd)
	}

	return s, nil
}

func loadMP3(path string) (*Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, curated.Errorf(LoadError, path, err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, curated.Errorf(LoadError, path, err)
	}

	s := &Sample{
		SampleRate: dec.SampleRate(),
		RootKey:    -1,
		LoopStart:  -1,
		LoopEnd:    -1,
	}

	// the decoded stream is always 16bit little endian 2 channel, four bytes
	// per sample pair. only the left channel is kept
	err = nil
	chunk := make([]byte, 4096)
	for err != io.EOF {
		var chunkLen int
		chunkLen, err = dec.Read(chunk)
		if err != nil && err != io.EOF {
			return nil, curated.Errorf(LoadError, path, err)
		}

		for i := 0; i+1 < chunkLen; i += 4 {
			s.Data = append(s.Data, int16(uint16(chunk[i])|uint16(chunk[i+1])<<8))
		}
	}

	return s, nil
}

// convertSample maps a decoded integer sample to signed 16-bit. 8-bit wav
// data is unsigned around a midpoint of 128.
func convertSample(v int, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		return int16((v - 128) * 256)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	default:
		return int16(v)
	}
}

// Silence returns a sample of n frames of digital silence at the given
// sample rate. Used as a placeholder when a referenced recording is missing.
func Silence(n int, sampleRate int) *Sample {
	return &Sample{
		Data:       make([]int16, n),
		SampleRate: sampleRate,
		RootKey:    -1,
		LoopStart:  -1,
		LoopEnd:    -1,
	}
}
