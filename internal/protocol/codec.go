// Package protocol implements the LDAPv3 wire codec and the
// per-connection message loop: BER framing, Bind/Search/Unbind
// dispatch, and ACL-gated search against a directory snapshot.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/lor00x/goldap/message"
)

// maxMessageSize is the ceiling on a single LDAP message's BER content
// length. A declared length beyond this is rejected before its body is
// read off the wire.
const maxMessageSize = 1 << 20

// ErrMessageTooLarge is returned when a message's declared BER length
// exceeds maxMessageSize.
var ErrMessageTooLarge = errors.New("protocol: LDAP message exceeds the 1 MiB ceiling")

// ReadMessage reads one length-delimited BER LDAP message from r.
func ReadMessage(r *bufio.Reader) (*message.LDAPMessage, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	first, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	header := []byte{tag, first}
	var contentLen int
	if first&0x80 == 0 {
		contentLen = int(first)
	} else {
		numLenBytes := int(first & 0x7f)
		if numLenBytes == 0 || numLenBytes > 4 {
			return nil, fmt.Errorf("protocol: invalid BER length encoding")
		}
		lenBytes := make([]byte, numLenBytes)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return nil, err
		}
		header = append(header, lenBytes...)
		for _, b := range lenBytes {
			contentLen = (contentLen << 8) | int(b)
		}
	}

	if contentLen > maxMessageSize {
		return nil, ErrMessageTooLarge
	}

	body := make([]byte, contentLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	data := make([]byte, 0, len(header)+len(body))
	data = append(data, header...)
	data = append(data, body...)

	bytesMsg := message.NewBytes(0, data)
	msg, err := message.ReadLDAPMessage(bytesMsg)
	if err != nil {
		return nil, fmt.Errorf("protocol: decoding LDAP message: %w", err)
	}
	return &msg, nil
}

// WriteMessage encodes msg to BER and writes it to w.
func WriteMessage(w io.Writer, msg *message.LDAPMessage) error {
	out, err := msg.Write()
	if err != nil {
		return fmt.Errorf("protocol: encoding LDAP message: %w", err)
	}
	_, err = w.Write(out.Bytes())
	return err
}
