package prsedm

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"compress/zlib"
	"io"

	"github.com/krolaw/zipstream"
	"github.com/xi2/xz"
)

type DataType byte

const (
	DataTypeInvalid DataType = iota
	DataTypeNoCompression
	DataTypeGzip
	DataTypeZip
	DataTypeXZ
	DataTypeZ
	DataTypeBZip2
)

// Checked in this order so that the two-byte Z signature, which shares a
// prefix with gzip, never shadows it.
var signatureOrder = []DataType{DataTypeXZ, DataTypeZip, DataTypeGzip, DataTypeBZip2, DataTypeZ}

var byteCodeSigs = map[DataType][]byte{
	DataTypeGzip:  {0x1f, 0x8b, 0x08},
	DataTypeZip:   {0x50, 0x4b, 0x03, 0x04},
	DataTypeXZ:    {0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00},
	DataTypeZ:     {0x1f, 0x9d},
	DataTypeBZip2: {0x42, 0x5a, 0x68},
}

// DetectDataType matches the leading bytes of a stream against known
// compression signatures. Byte code signatures from
// https://stackoverflow.com/a/19127748/199475
func DetectDataType(head []byte) DataType {
	for _, dt := range signatureOrder {
		if bytes.HasPrefix(head, byteCodeSigs[dt]) {
			return dt
		}
	}

	return DataTypeNoCompression
}

// MaybeDecompress peeks at r and, if it looks compressed, wraps it in the
// matching decompressor. Unlike seeking back to the start of a file, peeking
// also works for object-store readers, which cannot seek.
func MaybeDecompress(r io.Reader) (io.ReadCloser, error) {
	buffered := bufio.NewReader(r)
	head, err := buffered.Peek(6)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}

	switch DetectDataType(head) {
	case DataTypeGzip:
		return gzip.NewReader(buffered)
	case DataTypeZip:
		return &readCloserFaker{zipstream.NewReader(buffered)}, nil
	case DataTypeBZip2:
		return &readCloserFaker{bzip2.NewReader(buffered)}, nil
	case DataTypeXZ:
		reader, err := xz.NewReader(buffered, 0)
		if err != nil {
			return nil, err
		}
		return &readCloserFaker{reader}, nil
	case DataTypeZ:
		return zlib.NewReader(buffered)
	}

	return &readCloserFaker{buffered}, nil
}

// readCloserFaker "upgrades" readers that don't need to be closed
type readCloserFaker struct {
	io.Reader
}

func (c *readCloserFaker) Close() error {
	return nil
}
