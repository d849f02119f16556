package wire

import (
	"encoding/binary"
	"errors"
	"strings"
)

// Request framing constants.
const (
	// MaxRequestLen bounds the payload of a single request frame
	// (everything after the length header).
	MaxRequestLen = 4096

	// RequestHeaderLen is the size of the payload length header.
	RequestHeaderLen = 4

	lenFieldSize = 4
)

var (
	// ErrIncomplete reports that the buffer does not yet hold a full frame.
	ErrIncomplete = errors.New("wire: incomplete frame")

	// ErrTooBig reports a frame whose payload exceeds the configured bound.
	ErrTooBig = errors.New("wire: frame exceeds size limit")

	// ErrMalformed reports a frame whose interior lengths are inconsistent
	// with its payload length. The stream offset can no longer be trusted.
	ErrMalformed = errors.New("wire: malformed frame")
)

// Request is a command sent by a client: an array of strings that form a
// command when read in order, e.g. ["set", "name", "tyler"].
//
// Serialized payload layout:
//
//	+-- array length (u32) --+-- str1 length (u32) -- str1 bytes --+ ...
type Request struct {
	Cmd []string
}

// NewRequest returns a Request for the given command words.
func NewRequest(cmd ...string) *Request {
	return &Request{Cmd: cmd}
}

// PayloadLen returns the serialized payload size in bytes, excluding the
// length header.
func (r *Request) PayloadLen() int {
	n := lenFieldSize
	for _, s := range r.Cmd {
		n += lenFieldSize + len(s)
	}
	return n
}

// Marshal appends the framed request to buf. It refuses to emit a request
// whose payload exceeds MaxRequestLen.
func (r *Request) Marshal(buf *Buffer) error {
	payload := r.PayloadLen()
	if payload > MaxRequestLen {
		return ErrTooBig
	}

	buf.AppendUint32(uint32(payload))
	buf.AppendUint32(uint32(len(r.Cmd)))
	for _, s := range r.Cmd {
		buf.AppendUint32(uint32(len(s)))
		buf.Append([]byte(s))
	}
	return nil
}

// UnmarshalRequest extracts one request frame from the front of data.
// On success it returns the request and the total number of bytes the
// frame occupies (header included). It returns ErrIncomplete when data
// does not yet hold a complete frame, ErrTooBig when the advertised
// payload exceeds MaxRequestLen, and ErrMalformed when the interior
// lengths disagree with the payload length.
func UnmarshalRequest(data []byte) (*Request, int, error) {
	if len(data) < RequestHeaderLen {
		return nil, 0, ErrIncomplete
	}

	payload := int(binary.LittleEndian.Uint32(data))
	if payload > MaxRequestLen {
		return nil, 0, ErrTooBig
	}
	if len(data) < RequestHeaderLen+payload {
		return nil, 0, ErrIncomplete
	}

	p := data[RequestHeaderLen : RequestHeaderLen+payload]
	if len(p) < lenFieldSize {
		return nil, 0, ErrMalformed
	}
	count := int(binary.LittleEndian.Uint32(p))
	p = p[lenFieldSize:]
	// Each string needs at least its 4-byte length prefix, so a count the
	// payload cannot hold is malformed. Never size an allocation off the
	// raw header field.
	if count > len(p)/lenFieldSize {
		return nil, 0, ErrMalformed
	}

	cmd := make([]string, 0, count)
	for i := 0; i < count; i++ {
		if len(p) < lenFieldSize {
			return nil, 0, ErrMalformed
		}
		n := int(binary.LittleEndian.Uint32(p))
		p = p[lenFieldSize:]
		if n < 0 || len(p) < n {
			return nil, 0, ErrMalformed
		}
		cmd = append(cmd, string(p[:n]))
		p = p[n:]
	}
	if len(p) != 0 {
		return nil, 0, ErrMalformed
	}

	return &Request{Cmd: cmd}, RequestHeaderLen + payload, nil
}

// String returns the command as a single space-joined line.
func (r *Request) String() string {
	return strings.Join(r.Cmd, " ")
}
