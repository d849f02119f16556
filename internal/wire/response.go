package wire

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// Tag identifies the shape of a response body.
type Tag uint8

// Response tags.
const (
	TagNil Tag = 0
	TagErr Tag = 1
	TagStr Tag = 2
	TagInt Tag = 3
	TagDbl Tag = 4
	TagArr Tag = 5
)

// ErrCode is the wire error vocabulary carried by ERR responses.
type ErrCode uint8

// Error codes.
const (
	ErrUnknown    ErrCode = 0
	ErrCodeTooBig ErrCode = 1
	ErrBadType    ErrCode = 2
	ErrInvalidArg ErrCode = 3
)

// DefaultMaxResponseLen bounds a marshaled response payload unless the
// connection configures a different outgoing bound.
const DefaultMaxResponseLen = 4096

const (
	tagSize     = 1
	errCodeSize = 1
	numSize     = 8
)

// Response is a server reply. Exactly the fields implied by Tag are
// meaningful.
//
// Serialized payload layout (after the u32 length header):
//
//	NIL: tag
//	ERR: tag | code (u8) | msg length (u32) | msg bytes
//	STR: tag | length (u32) | bytes
//	INT: tag | i64
//	DBL: tag | f64
//	ARR: tag | count (u32) | count serialized elements
type Response struct {
	Tag  Tag
	Code ErrCode
	Str  string
	Int  int64
	Dbl  float64
	Arr  []*Response
}

// Nil returns a NIL response.
func Nil() *Response { return &Response{Tag: TagNil} }

// Err returns an ERR response with the given code and message.
func Err(code ErrCode, msg string) *Response {
	return &Response{Tag: TagErr, Code: code, Str: msg}
}

// Str returns a STR response.
func Str(s string) *Response { return &Response{Tag: TagStr, Str: s} }

// Int returns an INT response.
func Int(n int64) *Response { return &Response{Tag: TagInt, Int: n} }

// Dbl returns a DBL response.
func Dbl(f float64) *Response { return &Response{Tag: TagDbl, Dbl: f} }

// Arr returns an ARR response over the given elements.
func Arr(elements ...*Response) *Response {
	return &Response{Tag: TagArr, Arr: elements}
}

// PayloadLen returns the serialized payload size in bytes, excluding the
// length header.
func (r *Response) PayloadLen() int {
	switch r.Tag {
	case TagNil:
		return tagSize
	case TagErr:
		return tagSize + errCodeSize + lenFieldSize + len(r.Str)
	case TagStr:
		return tagSize + lenFieldSize + len(r.Str)
	case TagInt, TagDbl:
		return tagSize + numSize
	case TagArr:
		n := tagSize + lenFieldSize
		for _, e := range r.Arr {
			n += e.PayloadLen()
		}
		return n
	}
	return 0
}

// Marshal appends the framed response to buf. It returns ErrTooBig without
// writing anything when the payload exceeds limit; callers replace the
// response with ERR(TOO_BIG) and close the connection.
func (r *Response) Marshal(buf *Buffer, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxResponseLen
	}
	payload := r.PayloadLen()
	if payload > limit {
		return ErrTooBig
	}

	buf.AppendUint32(uint32(payload))
	r.serialize(buf)
	return nil
}

// serialize appends the tag and body. Array elements nest without their
// own length headers.
func (r *Response) serialize(buf *Buffer) {
	buf.AppendUint8(uint8(r.Tag))
	switch r.Tag {
	case TagErr:
		buf.AppendUint8(uint8(r.Code))
		buf.AppendUint32(uint32(len(r.Str)))
		buf.Append([]byte(r.Str))
	case TagStr:
		buf.AppendUint32(uint32(len(r.Str)))
		buf.Append([]byte(r.Str))
	case TagInt:
		buf.AppendInt64(r.Int)
	case TagDbl:
		buf.AppendFloat64(r.Dbl)
	case TagArr:
		buf.AppendUint32(uint32(len(r.Arr)))
		for _, e := range r.Arr {
			e.serialize(buf)
		}
	}
}

// UnmarshalResponse extracts one response frame from the front of data,
// returning the response and the total frame size. It returns
// ErrIncomplete when data does not yet hold a complete frame and
// ErrMalformed when the body disagrees with the payload length. No size
// limit is applied, so it never returns ErrTooBig.
func UnmarshalResponse(data []byte) (*Response, int, error) {
	if len(data) < RequestHeaderLen {
		return nil, 0, ErrIncomplete
	}

	payload := int(binary.LittleEndian.Uint32(data))
	if len(data) < RequestHeaderLen+payload {
		return nil, 0, ErrIncomplete
	}

	p := data[RequestHeaderLen : RequestHeaderLen+payload]
	resp, rest, err := deserialize(p)
	if err != nil {
		return nil, 0, err
	}
	if len(rest) != 0 {
		return nil, 0, ErrMalformed
	}
	return resp, RequestHeaderLen + payload, nil
}

// deserialize parses one tag+body from p and returns the remainder.
func deserialize(p []byte) (*Response, []byte, error) {
	if len(p) < tagSize {
		return nil, nil, ErrMalformed
	}
	tag := Tag(p[0])
	p = p[tagSize:]

	switch tag {
	case TagNil:
		return Nil(), p, nil

	case TagErr:
		if len(p) < errCodeSize+lenFieldSize {
			return nil, nil, ErrMalformed
		}
		code := ErrCode(p[0])
		n := int(binary.LittleEndian.Uint32(p[errCodeSize:]))
		p = p[errCodeSize+lenFieldSize:]
		if len(p) < n {
			return nil, nil, ErrMalformed
		}
		return Err(code, string(p[:n])), p[n:], nil

	case TagStr:
		if len(p) < lenFieldSize {
			return nil, nil, ErrMalformed
		}
		n := int(binary.LittleEndian.Uint32(p))
		p = p[lenFieldSize:]
		if len(p) < n {
			return nil, nil, ErrMalformed
		}
		return Str(string(p[:n])), p[n:], nil

	case TagInt:
		if len(p) < numSize {
			return nil, nil, ErrMalformed
		}
		return Int(int64(binary.LittleEndian.Uint64(p))), p[numSize:], nil

	case TagDbl:
		if len(p) < numSize {
			return nil, nil, ErrMalformed
		}
		return Dbl(math.Float64frombits(binary.LittleEndian.Uint64(p))), p[numSize:], nil

	case TagArr:
		if len(p) < lenFieldSize {
			return nil, nil, ErrMalformed
		}
		count := int(binary.LittleEndian.Uint32(p))
		p = p[lenFieldSize:]
		// Each element needs at least its tag byte; a count the payload
		// cannot hold is malformed.
		if count > len(p) {
			return nil, nil, ErrMalformed
		}
		elements := make([]*Response, 0, count)
		for i := 0; i < count; i++ {
			var (
				e   *Response
				err error
			)
			e, p, err = deserialize(p)
			if err != nil {
				return nil, nil, err
			}
			elements = append(elements, e)
		}
		return Arr(elements...), p, nil
	}

	return nil, nil, ErrMalformed
}

// FormatScore renders a score the way zscore reports it: six decimals.
func FormatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// String renders the human projection of the response used by the CLI.
func (r *Response) String() string {
	switch r.Tag {
	case TagNil:
		return "(nil)"
	case TagErr:
		return "(error) " + r.Str
	case TagStr:
		return "(string) " + r.Str
	case TagInt:
		return "(integer) " + strconv.FormatInt(r.Int, 10)
	case TagDbl:
		return "(double) " + FormatScore(r.Dbl)
	case TagArr:
		var sb strings.Builder
		sb.WriteString("(array) len=")
		sb.WriteString(strconv.Itoa(len(r.Arr)))
		for _, e := range r.Arr {
			sb.WriteByte('\n')
			sb.WriteString(e.String())
		}
		sb.WriteString("\n(array) end")
		return sb.String()
	}
	return "(unknown)"
}

// Equal reports structural equality of two responses.
func (r *Response) Equal(other *Response) bool {
	if r.Tag != other.Tag {
		return false
	}
	switch r.Tag {
	case TagNil:
		return true
	case TagErr:
		return r.Code == other.Code && r.Str == other.Str
	case TagStr:
		return r.Str == other.Str
	case TagInt:
		return r.Int == other.Int
	case TagDbl:
		return r.Dbl == other.Dbl || (math.IsNaN(r.Dbl) && math.IsNaN(other.Dbl))
	case TagArr:
		if len(r.Arr) != len(other.Arr) {
			return false
		}
		for i := range r.Arr {
			if !r.Arr[i].Equal(other.Arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}
