package eventstream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"sort"
)

const (
	preludeSize  = 12
	checksumSize = 4
	minFrameSize = preludeSize + checksumSize
	// maxFrameSize guards against absurd declared lengths from corrupt
	// preludes.
	maxFrameSize = 16 << 20
)

var (
	errIncompleteFrame = errors.New("incomplete frame")
	errBadPrelude      = errors.New("prelude checksum mismatch")
	errBadFrame        = errors.New("frame checksum mismatch")
	errMalformedFrame  = errors.New("malformed frame")
)

// Frame is one decoded protocol frame: typed headers plus an opaque payload.
type Frame struct {
	Headers map[string]string
	Payload []byte
}

// Header value types on the wire.
const (
	headerBoolTrue  = 0
	headerBoolFalse = 1
	headerByte      = 2
	headerInt16     = 3
	headerInt32     = 4
	headerInt64     = 5
	headerByteArray = 6
	headerString    = 7
	headerTimestamp = 8
	headerUUID      = 9
)

// decodeFrame decodes the first frame in buf. consumed is the number of
// bytes the caller should advance past, which is nonzero even for a frame
// that fails its whole-frame checksum (so the stream can continue).
func decodeFrame(buf []byte) (Frame, int, error) {
	if len(buf) < preludeSize {
		return Frame{}, 0, errIncompleteFrame
	}
	total := int(binary.BigEndian.Uint32(buf[0:4]))
	headerLen := int(binary.BigEndian.Uint32(buf[4:8]))
	preludeCRC := binary.BigEndian.Uint32(buf[8:preludeSize])
	if crc32.ChecksumIEEE(buf[0:8]) != preludeCRC {
		return Frame{}, 0, errBadPrelude
	}
	if total < minFrameSize || total > maxFrameSize || headerLen > total-minFrameSize {
		return Frame{}, 0, errMalformedFrame
	}
	if len(buf) < total {
		return Frame{}, 0, errIncompleteFrame
	}
	declaredCRC := binary.BigEndian.Uint32(buf[total-checksumSize : total])
	if crc32.ChecksumIEEE(buf[:total-checksumSize]) != declaredCRC {
		return Frame{}, total, errBadFrame
	}

	headers, err := decodeHeaders(buf[preludeSize : preludeSize+headerLen])
	if err != nil {
		return Frame{}, total, err
	}
	payload := make([]byte, total-checksumSize-preludeSize-headerLen)
	copy(payload, buf[preludeSize+headerLen:total-checksumSize])
	return Frame{Headers: headers, Payload: payload}, total, nil
}

// decodeHeaders walks the typed key/value header section. Only string and
// bool values are retained; other types are skipped over.
func decodeHeaders(b []byte) (map[string]string, error) {
	headers := map[string]string{}
	for len(b) > 0 {
		nameLen := int(b[0])
		if len(b) < 1+nameLen+1 {
			return nil, errMalformedFrame
		}
		name := string(b[1 : 1+nameLen])
		valueType := b[1+nameLen]
		b = b[1+nameLen+1:]

		switch valueType {
		case headerBoolTrue:
			headers[name] = "true"
		case headerBoolFalse:
			headers[name] = "false"
		case headerByte:
			if len(b) < 1 {
				return nil, errMalformedFrame
			}
			b = b[1:]
		case headerInt16:
			if len(b) < 2 {
				return nil, errMalformedFrame
			}
			b = b[2:]
		case headerInt32:
			if len(b) < 4 {
				return nil, errMalformedFrame
			}
			b = b[4:]
		case headerInt64, headerTimestamp:
			if len(b) < 8 {
				return nil, errMalformedFrame
			}
			b = b[8:]
		case headerByteArray, headerString:
			if len(b) < 2 {
				return nil, errMalformedFrame
			}
			valueLen := int(binary.BigEndian.Uint16(b))
			if len(b) < 2+valueLen {
				return nil, errMalformedFrame
			}
			if valueType == headerString {
				headers[name] = string(b[2 : 2+valueLen])
			}
			b = b[2+valueLen:]
		case headerUUID:
			if len(b) < 16 {
				return nil, errMalformedFrame
			}
			b = b[16:]
		default:
			return nil, errMalformedFrame
		}
	}
	return headers, nil
}

// Encode builds a wire frame with string headers around payload. Used by
// the relay when synthesizing frames and by decoder tests.
func Encode(headers map[string]string, payload []byte) []byte {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var hb bytes.Buffer
	for _, name := range names {
		hb.WriteByte(byte(len(name)))
		hb.WriteString(name)
		hb.WriteByte(headerString)
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(headers[name])))
		hb.Write(l[:])
		hb.WriteString(headers[name])
	}

	total := preludeSize + hb.Len() + len(payload) + checksumSize
	out := make([]byte, 0, total)
	var word [4]byte
	binary.BigEndian.PutUint32(word[:], uint32(total))
	out = append(out, word[:]...)
	binary.BigEndian.PutUint32(word[:], uint32(hb.Len()))
	out = append(out, word[:]...)
	binary.BigEndian.PutUint32(word[:], crc32.ChecksumIEEE(out))
	out = append(out, word[:]...)
	out = append(out, hb.Bytes()...)
	out = append(out, payload...)
	binary.BigEndian.PutUint32(word[:], crc32.ChecksumIEEE(out))
	out = append(out, word[:]...)
	return out
}
