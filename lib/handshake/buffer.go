// Copyright 2026 The Wirebus Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/wirebus/wirebus/lib/rawconn"
)

// lineEnding terminates every command in the text phase.
var lineEnding = []byte("\r\n")

// readChunkSize is how many bytes each recvmsg attempt pulls while
// accumulating a command line. Handshake lines are short; a small
// chunk keeps over-read past the final BEGIN negligible.
const readChunkSize = 64

// flushOutbound writes the buffer to the socket until it is empty,
// draining the front as each partial write completes. On would-block
// the remaining bytes stay in place, so a later call resumes exactly
// where the last write stopped.
func flushOutbound(socket rawconn.Socket, buffer *[]byte) error {
	for len(*buffer) > 0 {
		written, err := socket.Sendmsg(*buffer, nil)
		if err != nil {
			return err
		}
		*buffer = (*buffer)[written:]
	}
	return nil
}

// readLine accumulates inbound bytes into the buffer until it ends
// with CRLF. On would-block the bytes read so far stay in the buffer,
// so a later call continues the same line. The handshake phase carries
// no file descriptors; any that arrive are ignored.
func readLine(socket rawconn.Socket, buffer *[]byte) error {
	for !bytes.HasSuffix(*buffer, lineEnding) {
		var chunk [readChunkSize]byte
		read, _, err := socket.Recvmsg(chunk[:])
		if err != nil {
			return err
		}
		*buffer = append(*buffer, chunk[:read]...)
	}
	return nil
}

// firstLine returns the buffer's contents up to (not including) the
// first CRLF.
func firstLine(buffer []byte) string {
	if i := bytes.Index(buffer, lineEnding); i >= 0 {
		return string(buffer[:i])
	}
	return string(buffer)
}

// encodeUid renders a uid for the AUTH EXTERNAL command. The transform
// is textual, not numeric: the uid's decimal string with each ASCII
// digit replaced by the two hex digits of its code point, so uid 1000
// becomes "31303030".
func encodeUid(uid uint32) string {
	return hex.EncodeToString([]byte(strconv.FormatUint(uint64(uid), 10)))
}

// decodeUid inverts encodeUid: hex-decode to the decimal string, then
// parse that as a 32-bit uid.
func decodeUid(token string) (uint32, error) {
	decimal, err := hex.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("uid token %q is not hex: %w", token, err)
	}
	uid, err := strconv.ParseUint(string(decimal), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("uid token %q does not decode to a uid: %w", token, err)
	}
	return uint32(uid), nil
}
