package recognize

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultChunkBytes is 0.2 s of 16 kHz 16-bit mono audio.
const DefaultChunkBytes = 6400

// Handler receives results while a stream is running.
type Handler interface {
	// OnPartialResult is called after a chunk that did not end an utterance.
	OnPartialResult(Result)
	// OnResult is called when an utterance ends.
	OnResult(Result)
	// OnFinalResult is called once when the stream ends.
	OnFinalResult(Result)
}

// Stream reads PCM from r in chunks of chunkBytes and feeds it to rec until r
// returns io.EOF or ctx is cancelled. The final result is delivered in both
// cases; on cancellation Stream then returns ctx.Err().
func Stream(ctx context.Context, rec Recognizer, r io.Reader, chunkBytes int, h Handler) error {
	if chunkBytes <= 0 {
		chunkBytes = DefaultChunkBytes
	}
	// whole samples only
	chunkBytes &^= 1
	if chunkBytes == 0 {
		chunkBytes = 2
	}

	buf := make([]byte, chunkBytes)
	for {
		if err := ctx.Err(); err != nil {
			return finish(rec, h, err)
		}

		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			if err := feed(rec, buf[:n&^1], h); err != nil {
				return err
			}
		}
		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			return finish(rec, h, nil)
		default:
			return fmt.Errorf("recognize: read audio: %w", readErr)
		}
	}
}

func feed(rec Recognizer, pcm []byte, h Handler) error {
	if len(pcm) == 0 {
		return nil
	}
	done, err := rec.AcceptWaveform(pcm)
	if err != nil {
		return fmt.Errorf("recognize: accept waveform: %w", err)
	}
	if done {
		res, err := rec.Result()
		if err != nil {
			return err
		}
		h.OnResult(res)
		return nil
	}
	res, err := rec.PartialResult()
	if err != nil {
		return err
	}
	h.OnPartialResult(res)
	return nil
}

func finish(rec Recognizer, h Handler, streamErr error) error {
	res, err := rec.FinalResult()
	if err != nil {
		return errors.Join(streamErr, err)
	}
	h.OnFinalResult(res)
	return streamErr
}
