package demo

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const wavHeaderSize = 44

// wavHeader is the 44-byte RIFF header for signed 16-bit LE mono PCM.
type wavHeader struct {
	RiffID   [4]byte
	RiffSize uint32
	WaveID   [4]byte

	FmtID       [4]byte
	FmtSize     uint32
	AudioFormat uint16
	NumChannels uint16
	SampleRate  uint32
	ByteRate    uint32
	BlockAlign  uint16
	BitsPerSamp uint16

	DataID   [4]byte
	DataSize uint32
}

// wavFile is an open mono PCM recording. The header is written with
// zero sizes at creation and patched when the recording is finalized.
type wavFile struct {
	f          *os.File
	sampleRate uint32
	written    uint32 // audio bytes appended so far
}

func createWAV(path string, sampleRate int) (*wavFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav: %w", err)
	}

	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	sr := uint32(sampleRate)
	h := wavHeader{
		RiffID:      [4]byte{'R', 'I', 'F', 'F'},
		RiffSize:    wavHeaderSize - 8,
		WaveID:      [4]byte{'W', 'A', 'V', 'E'},
		FmtID:       [4]byte{'f', 'm', 't', ' '},
		FmtSize:     16,
		AudioFormat: 1, // PCM
		NumChannels: numChannels,
		SampleRate:  sr,
		ByteRate:    sr * numChannels * bitsPerSample / 8,
		BlockAlign:  numChannels * bitsPerSample / 8,
		BitsPerSamp: bitsPerSample,
		DataID:      [4]byte{'d', 'a', 't', 'a'},
		DataSize:    0,
	}
	if err := binary.Write(f, binary.LittleEndian, &h); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write wav header: %w", err)
	}

	return &wavFile{f: f, sampleRate: sr}, nil
}

func (w *wavFile) appendSamples(samples []int16) error {
	if err := binary.Write(w.f, binary.LittleEndian, samples); err != nil {
		return err
	}
	w.written += uint32(len(samples) * 2)
	return nil
}

// finalize patches the RIFF and data chunk sizes to match what was
// actually written, then closes the file.
func (w *wavFile) finalize() error {
	patchErr := w.patchSizes()
	closeErr := w.f.Close()
	if patchErr != nil {
		return patchErr
	}
	return closeErr
}

func (w *wavFile) patchSizes() error {
	// RIFF chunk size at offset 4, data chunk size at offset 40.
	if _, err := w.f.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w.f, binary.LittleEndian, wavHeaderSize-8+w.written); err != nil {
		return err
	}
	if _, err := w.f.Seek(40, io.SeekStart); err != nil {
		return err
	}
	return binary.Write(w.f, binary.LittleEndian, w.written)
}
