package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrProtocol marks a framing violation: a field length that doesn't fit
// the stream, an unrecognized tag byte, or a connection that ends mid
// message. Per spec, a server that hits this closes the connection without
// writing a reply.
var ErrProtocol = errors.New("protocol framing error")

const maxFieldLen = 64 * 1024 * 1024 // guards against a corrupt/hostile length prefix

// WriteRequest encodes req to w.
func WriteRequest(w io.Writer, req Request) error {
	bw := bufio.NewWriter(w)
	if err := bw.WriteByte(byte(req.Kind)); err != nil {
		return err
	}
	if err := writeString(bw, req.Key); err != nil {
		return err
	}
	if req.Kind == KindSet {
		if err := writeString(bw, req.Value); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadRequest decodes one Request from r. Any framing problem is wrapped in
// ErrProtocol.
func ReadRequest(r io.Reader) (Request, error) {
	br := bufio.NewReader(r)
	var req Request

	kindByte, err := br.ReadByte()
	if err != nil {
		return req, fmt.Errorf("%w: reading kind: %v", ErrProtocol, err)
	}
	req.Kind = RequestKind(kindByte)
	if req.Kind != KindGet && req.Kind != KindSet && req.Kind != KindRemove {
		return req, fmt.Errorf("%w: unknown request kind %d", ErrProtocol, kindByte)
	}

	key, err := readString(br)
	if err != nil {
		return req, fmt.Errorf("%w: reading key: %v", ErrProtocol, err)
	}
	req.Key = key

	if req.Kind == KindSet {
		value, err := readString(br)
		if err != nil {
			return req, fmt.Errorf("%w: reading value: %v", ErrProtocol, err)
		}
		req.Value = value
	}
	return req, nil
}

// WriteResponse encodes resp to w.
func WriteResponse(w io.Writer, resp Response) error {
	bw := bufio.NewWriter(w)
	if err := bw.WriteByte(byte(resp.Status)); err != nil {
		return err
	}
	switch resp.Status {
	case StatusFound:
		if err := writeString(bw, resp.Value); err != nil {
			return err
		}
	case StatusErr:
		if err := writeString(bw, resp.Message); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadResponse decodes one Response from r.
func ReadResponse(r io.Reader) (Response, error) {
	br := bufio.NewReader(r)
	var resp Response

	statusByte, err := br.ReadByte()
	if err != nil {
		return resp, fmt.Errorf("%w: reading status: %v", ErrProtocol, err)
	}
	resp.Status = ResponseStatus(statusByte)

	switch resp.Status {
	case StatusOK, StatusNotFound:
		// no body
	case StatusFound:
		v, err := readString(br)
		if err != nil {
			return resp, fmt.Errorf("%w: reading value: %v", ErrProtocol, err)
		}
		resp.Value = v
	case StatusErr:
		m, err := readString(br)
		if err != nil {
			return resp, fmt.Errorf("%w: reading message: %v", ErrProtocol, err)
		}
		resp.Message = m
	default:
		return resp, fmt.Errorf("%w: unknown response status %d", ErrProtocol, statusByte)
	}
	return resp, nil
}

func writeString(w io.Writer, s string) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	l := binary.BigEndian.Uint32(lenBuf[:])
	if l > maxFieldLen {
		return "", fmt.Errorf("field length %d exceeds limit", l)
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
