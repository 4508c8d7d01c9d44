// Completion: 100% - Utility module complete
package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// Writer receives encoded machine code bytes
type Writer interface {
	Write(b byte) int
	Write8u(v uint64) int
	WriteBytes(bs []byte) int
	WriteUnsigned(i uint) int
	Len() int
	Bytes() []byte
}

// BufferWrapper is the Writer used by the code generators.
// In verbose mode every byte is traced to stderr.
type BufferWrapper struct {
	buf *bytes.Buffer
}

// NewBufferWrapper returns a Writer over a fresh buffer
func NewBufferWrapper() *BufferWrapper {
	return &BufferWrapper{buf: &bytes.Buffer{}}
}

func (bw *BufferWrapper) Write(b byte) int {
	bw.buf.WriteByte(b)
	if VerboseMode {
		fmt.Fprintf(os.Stderr, " %02x", b)
	}
	return 1
}

func (bw *BufferWrapper) Write8u(v uint64) int {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	bw.buf.Write(tmp[:])
	if VerboseMode {
		fmt.Fprintf(os.Stderr, " %x", v)
	}
	return 8
}

func (bw *BufferWrapper) WriteBytes(bs []byte) int {
	bw.buf.Write(bs)
	if VerboseMode {
		for _, b := range bs {
			fmt.Fprintf(os.Stderr, " %02x", b)
		}
	}
	return len(bs)
}

// WriteUnsigned writes the low 32 bits of i, little-endian
func (bw *BufferWrapper) WriteUnsigned(i uint) int {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(i))
	bw.buf.Write(tmp[:])
	if VerboseMode {
		fmt.Fprintf(os.Stderr, " %02x %02x %02x %02x", tmp[0], tmp[1], tmp[2], tmp[3])
	}
	return 4
}

func (bw *BufferWrapper) Len() int {
	return bw.buf.Len()
}

func (bw *BufferWrapper) Bytes() []byte {
	return bw.buf.Bytes()
}

// patchRel32 overwrites the 4 bytes at pos with a little-endian displacement
func patchRel32(code []byte, pos int, disp int32) {
	binary.LittleEndian.PutUint32(code[pos:pos+4], uint32(disp))
}

