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

// Package encoder compresses staged WAV audio to the final distribution
// format.
//
// Compression is another external collaborator. The Encoder interface is
// a deliberately narrow boundary: WAV path and optional loop metadata in,
// exit status and output file presence out. The production implementation
// shells out to ffmpeg for Vorbis encoding; a different CLI tool or an
// in-process encoder can be substituted without touching the conversion
// pipeline.
package encoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/hautbois/agbsound/curated"
	"github.com/hautbois/agbsound/logger"
)

const logTag = "encoder"

// sentinel errors for the encoder package
const (
	EncodeError = "encoder: %s: %v"
)

// Encoder compresses the WAV file at wavPath to outputPath. A loopLength
// greater than zero embeds the loop region as metadata in the compressed
// file. An error means the output file cannot be relied upon to exist.
type Encoder interface {
	Encode(ctx context.Context, wavPath string, outputPath string, loopStart int, loopLength int) error
}

// FFmpeg encodes to Vorbis by running the ffmpeg program. Loop points are
// embedded as the LOOPSTART/LOOPLENGTH comment tags recognised by game
// engines.
type FFmpeg struct {
	// Executable is the program to run. Defaults to "ffmpeg" found on the
	// search path.
	Executable string

	// Timeout bounds a single encode. A stuck encoder process is killed
	// rather than stalling the batch.
	Timeout time.Duration

	// Quality is the VBR quality passed to the encoder.
	Quality int
}

// NewFFmpeg is the preferred method of initialisation for the FFmpeg type.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		Executable: "ffmpeg",
		Timeout:    30 * time.Second,
		Quality:    6,
	}
}

// Encode implements the Encoder interface.
func (ff *FFmpeg) Encode(ctx context.Context, wavPath string, outputPath string, loopStart int, loopLength int) error {
	ctx, cancel := context.WithTimeout(ctx, ff.Timeout)
	defer cancel()

	args := []string{
		"-y",
		"-i", wavPath,
		"-c:a", "libvorbis",
		"-q:a", fmt.Sprintf("%d", ff.Quality),
	}
	if loopLength > 0 {
		args = append(args,
			"-metadata", fmt.Sprintf("LOOPSTART=%d", loopStart),
			"-metadata", fmt.Sprintf("LOOPLENGTH=%d", loopLength),
		)
	}
	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, ff.Executable, args...)

	logger.Logf(logger.Allow, logTag, "encoding %s", outputPath)

	if output, err := cmd.CombinedOutput(); err != nil {
		logger.Logf(logger.Allow, logTag, "%s", output)
		if ctx.Err() == context.DeadlineExceeded {
			return curated.Errorf(EncodeError, outputPath, "timed out")
		}
		return curated.Errorf(EncodeError, outputPath, err)
	}

	// a zero exit status is not proof of output. the file must exist
	if _, err := os.Stat(outputPath); err != nil {
		return curated.Errorf(EncodeError, outputPath, "no output file")
	}

	return nil
}
