package outputstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// DefaultBufferSizeBytes bounds a single pipe read when no explicit size is configured.
	DefaultBufferSizeBytes = 8192
	// DefaultMaximumOutputSizeBytes caps the total bytes drained from one stream when no explicit ceiling is configured.
	DefaultMaximumOutputSizeBytes = 1 << 20
)

const (
	truncationMarkerTemplateConstant     = "\n[OUTPUT TRUNCATED: exceeded %d bytes]"
	streamErrorMarkerTemplateConstant    = "[STREAM ERROR: %s]"
	invalidByteReplacementConstant       = string(utf8.RuneError)
	maximumCarriedRuneBytesConstant      = utf8.UTFMax - 1
	streamStartedDebugMessageConstant    = "output stream started"
	streamTruncatedWarnMessageConstant   = "output stream truncated"
	streamReadFailureWarnMessageConstant = "output stream read failed"
	logFieldBufferSizeBytesConstant      = "buffer_size_bytes"
	logFieldMaximumOutputBytesConstant   = "maximum_output_size_bytes"
	logFieldStreamedByteCountConstant    = "streamed_byte_count"
	logFieldReadFailureConstant          = "read_failure"
)

// Sentinel errors reported for invalid streamer configuration.
var (
	ErrNonPositiveBufferSize        = errors.New("output streamer buffer size must be positive")
	ErrNonPositiveMaximumOutputSize = errors.New("output streamer maximum output size must be positive")
)

// ChunkPair carries one chunk from a separated stream; exactly one side is populated.
type ChunkPair struct {
	StandardOutputChunk string
	StandardErrorChunk  string
}

// OutputStreamer drains subprocess pipes into bounded text chunk sequences.
type OutputStreamer struct {
	logger                 *zap.Logger
	maximumOutputSizeBytes int
	bufferSizeMutex        sync.RWMutex
	bufferSizeBytes        int
}

// NewOutputStreamer validates the requested sizes and constructs a streamer.
// Non-positive sizes are rejected immediately; this is the one configuration
// failure the execution core refuses to degrade around.
func NewOutputStreamer(logger *zap.Logger, bufferSizeBytes int, maximumOutputSizeBytes int) (*OutputStreamer, error) {
	if bufferSizeBytes <= 0 {
		return nil, ErrNonPositiveBufferSize
	}
	if maximumOutputSizeBytes <= 0 {
		return nil, ErrNonPositiveMaximumOutputSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OutputStreamer{
		logger:                 logger,
		maximumOutputSizeBytes: maximumOutputSizeBytes,
		bufferSizeBytes:        bufferSizeBytes,
	}, nil
}

// BufferSize reports the currently configured per-read byte bound.
func (streamer *OutputStreamer) BufferSize() int {
	streamer.bufferSizeMutex.RLock()
	defer streamer.bufferSizeMutex.RUnlock()
	return streamer.bufferSizeBytes
}

// MaximumOutputSize reports the per-stream byte ceiling.
func (streamer *OutputStreamer) MaximumOutputSize() int {
	return streamer.maximumOutputSizeBytes
}

// AdjustBufferSize changes the per-read byte bound for subsequent reads.
// Streams already in flight observe the new size on their next pull.
func (streamer *OutputStreamer) AdjustBufferSize(bufferSizeBytes int) error {
	if bufferSizeBytes <= 0 {
		return ErrNonPositiveBufferSize
	}

	streamer.bufferSizeMutex.Lock()
	defer streamer.bufferSizeMutex.Unlock()
	streamer.bufferSizeBytes = bufferSizeBytes
	return nil
}

// Stream lazily drains the supplied pipe and delivers decoded chunks on the
// returned channel. The channel closes when the pipe is exhausted, the output
// ceiling is exceeded, a read fails, or the context is cancelled. Consuming
// the channel drains the underlying pipe; the sequence is not restartable.
func (streamer *OutputStreamer) Stream(streamContext context.Context, pipe io.Reader) <-chan string {
	chunkChannel := make(chan string)

	go func() {
		defer close(chunkChannel)
		streamer.drainPipe(streamContext, pipe, func(chunk string) bool {
			select {
			case chunkChannel <- chunk:
				return true
			case <-streamContext.Done():
				return false
			}
		})
	}()

	return chunkChannel
}

// Capture eagerly drains the supplied pipe to completion under the configured
// ceiling and returns the accumulated text, truncation marker included when
// the ceiling was exceeded.
func (streamer *OutputStreamer) Capture(captureContext context.Context, pipe io.Reader) string {
	var capturedOutput strings.Builder
	streamer.drainPipe(captureContext, pipe, func(chunk string) bool {
		capturedOutput.WriteString(chunk)
		return captureContext.Err() == nil
	})
	return capturedOutput.String()
}

// StreamSeparated drains both pipes concurrently and delivers chunk pairs on
// one channel. Fairness between the two channels is best effort; ordering is
// guaranteed only within each channel. The channel closes once both pipes are
// exhausted.
func (streamer *OutputStreamer) StreamSeparated(streamContext context.Context, standardOutputPipe io.Reader, standardErrorPipe io.Reader) <-chan ChunkPair {
	pairChannel := make(chan ChunkPair)

	var drainGroup sync.WaitGroup
	drainSide := func(pipe io.Reader, wrapChunk func(string) ChunkPair) {
		defer drainGroup.Done()
		if pipe == nil {
			return
		}
		streamer.drainPipe(streamContext, pipe, func(chunk string) bool {
			select {
			case pairChannel <- wrapChunk(chunk):
				return true
			case <-streamContext.Done():
				return false
			}
		})
	}

	drainGroup.Add(2)
	go drainSide(standardOutputPipe, func(chunk string) ChunkPair {
		return ChunkPair{StandardOutputChunk: chunk}
	})
	go drainSide(standardErrorPipe, func(chunk string) ChunkPair {
		return ChunkPair{StandardErrorChunk: chunk}
	})

	go func() {
		drainGroup.Wait()
		close(pairChannel)
	}()

	return pairChannel
}

// drainPipe performs bounded reads until exhaustion, ceiling breach, read
// failure, or a refused emission. Failures never escape; they become marker
// chunks.
func (streamer *OutputStreamer) drainPipe(drainContext context.Context, pipe io.Reader, emitChunk func(string) bool) {
	if pipe == nil {
		return
	}

	streamer.logger.Debug(
		streamStartedDebugMessageConstant,
		zap.Int(logFieldBufferSizeBytesConstant, streamer.BufferSize()),
		zap.Int(logFieldMaximumOutputBytesConstant, streamer.maximumOutputSizeBytes),
	)

	var carriedBytes []byte
	streamedByteCount := 0

	for {
		if drainContext.Err() != nil {
			return
		}

		readBuffer := make([]byte, streamer.BufferSize())
		bytesRead, readError := pipe.Read(readBuffer)

		if bytesRead > 0 {
			remainingBudget := streamer.maximumOutputSizeBytes - streamedByteCount
			streamedByteCount += bytesRead

			deliverable := readBuffer[:bytesRead]
			ceilingExceeded := streamedByteCount > streamer.maximumOutputSizeBytes
			if ceilingExceeded && remainingBudget > 0 {
				deliverable = deliverable[:remainingBudget]
			}
			if ceilingExceeded && remainingBudget <= 0 {
				deliverable = nil
			}

			chunkText := ""
			chunkText, carriedBytes = decodeChunk(carriedBytes, deliverable, ceilingExceeded)
			if len(chunkText) > 0 {
				if !emitChunk(chunkText) {
					return
				}
			}

			if ceilingExceeded {
				streamer.logger.Warn(
					streamTruncatedWarnMessageConstant,
					zap.Int(logFieldMaximumOutputBytesConstant, streamer.maximumOutputSizeBytes),
					zap.Int(logFieldStreamedByteCountConstant, streamedByteCount),
				)
				emitChunk(fmt.Sprintf(truncationMarkerTemplateConstant, streamer.maximumOutputSizeBytes))
				return
			}
		}

		if readError != nil {
			if len(carriedBytes) > 0 {
				flushedTail, _ := decodeChunk(nil, carriedBytes, true)
				if len(flushedTail) > 0 && !emitChunk(flushedTail) {
					return
				}
			}
			if !errors.Is(readError, io.EOF) {
				streamer.logger.Warn(
					streamReadFailureWarnMessageConstant,
					zap.String(logFieldReadFailureConstant, readError.Error()),
				)
				emitChunk(fmt.Sprintf(streamErrorMarkerTemplateConstant, readError.Error()))
			}
			return
		}
	}
}

// decodeChunk joins carried bytes with fresh data and returns the decodable
// prefix as text plus the bytes to carry into the next read. When flushTail is
// set the whole input is decoded lossily and nothing is carried.
func decodeChunk(carriedBytes []byte, data []byte, flushTail bool) (string, []byte) {
	combined := append(append([]byte{}, carriedBytes...), data...)
	if len(combined) == 0 {
		return "", nil
	}

	if flushTail {
		return strings.ToValidUTF8(string(combined), invalidByteReplacementConstant), nil
	}

	boundary := len(combined)
	for trailingOffset := 1; trailingOffset <= maximumCarriedRuneBytesConstant && trailingOffset <= len(combined); trailingOffset++ {
		candidateByte := combined[len(combined)-trailingOffset]
		if utf8.RuneStart(candidateByte) {
			if !utf8.FullRune(combined[len(combined)-trailingOffset:]) {
				boundary = len(combined) - trailingOffset
			}
			break
		}
	}

	decoded := strings.ToValidUTF8(string(combined[:boundary]), invalidByteReplacementConstant)
	remainder := append([]byte{}, combined[boundary:]...)
	return decoded, remainder
}
