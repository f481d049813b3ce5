package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/kilianp07/mtrr/core/model"
)

// FrameSize is the encoded size of a frame in bytes.
const FrameSize = 4 + model.DataWords*4

// Marshal encodes a frame as its header bytes followed by big-endian words.
func Marshal(f model.Frame) []byte {
	b := make([]byte, FrameSize)
	b[0], b[1], b[2], b[3] = f.Type, f.Subtype, f.VehicleID, f.SeqOp
	for i, w := range f.Data {
		binary.BigEndian.PutUint32(b[4+i*4:], uint32(w))
	}
	return b
}

// Unmarshal decodes a frame produced by Marshal.
func Unmarshal(b []byte) (model.Frame, error) {
	var f model.Frame
	if len(b) != FrameSize {
		return f, fmt.Errorf("frame size %d, want %d", len(b), FrameSize)
	}
	f.Type, f.Subtype, f.VehicleID, f.SeqOp = b[0], b[1], b[2], b[3]
	for i := range f.Data {
		f.Data[i] = int32(binary.BigEndian.Uint32(b[4+i*4:]))
	}
	return f, nil
}
