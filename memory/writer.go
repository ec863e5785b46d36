package memory

import "secureiap/status"

// WriteFlag controls how Writer.Write treats its internal staging buffer.
type WriteFlag uint8

const (
	// Continue appends bytes and commits only full min-write-sized aligned
	// blocks; any remainder stays staged for the next call.
	Continue WriteFlag = iota
	// Flush appends bytes, then zero-pads and commits the remainder.
	Flush
	// ResetAndContinue discards any previously staged bytes before
	// behaving like Continue. Used at the start of a new image so stale
	// state from a prior session can never leak into a new one.
	ResetAndContinue
)

// Writer buffers writes to a single slot at the flash's minimum write
// granularity. Each Writer owns its own staging buffer: unlike the
// reference implementation's single process-wide static buffer, two
// Writers (e.g. one per concurrently-open image) never interfere with each
// other.
type Writer struct {
	slot      *Slot
	blockSize uint32
	offset    uint32 // next unwritten offset inside the slot
	staged    []byte // len == blockSize, staged[:stagedLen] holds pending bytes
	stagedLen uint32
	written   uint32
}

// NewWriter creates a Writer for slot, starting at slot offset 0.
func NewWriter(s *Slot) (*Writer, error) {
	m := s.memParent
	if m == nil {
		return nil, status.ErrInvalidParameters
	}
	blockSize := m.info.WriteSize
	if blockSize == 0 {
		blockSize = 1
	}
	return &Writer{
		slot:      s,
		blockSize: blockSize,
		staged:    make([]byte, blockSize),
	}, nil
}

// Written reports the total number of bytes committed to flash so far
// (does not count bytes still staged).
func (w *Writer) Written() uint32 { return w.written }

// Write appends data to the slot starting wherever the writer last left
// off, honoring flag's staging semantics.
func (w *Writer) Write(data []byte, flag WriteFlag) error {
	if flag == ResetAndContinue {
		w.stagedLen = 0
	}

	for len(data) > 0 {
		n := copy(w.staged[w.stagedLen:], data)
		w.stagedLen += uint32(n)
		data = data[n:]

		if w.stagedLen == w.blockSize {
			if err := w.commit(w.staged); err != nil {
				return err
			}
			w.stagedLen = 0
		}
	}

	if flag == Flush && w.stagedLen != 0 {
		for i := w.stagedLen; i < w.blockSize; i++ {
			w.staged[i] = 0
		}
		if err := w.commit(w.staged); err != nil {
			return err
		}
		w.stagedLen = 0
	}
	return nil
}

func (w *Writer) commit(block []byte) error {
	m := w.slot.memParent
	if err := m.Driver.Write(w.slot.Addr+w.offset, block); err != nil {
		return status.ErrMemoryDriverWriteFailed
	}
	w.offset += w.blockSize
	w.written += w.blockSize
	return nil
}
