// Package ysync implements the replica synchronization protocol for ydoc
// documents, plus a WebSocket provider speaking it.
//
// The protocol is a two-step handshake followed by incremental broadcast:
// a peer sends its state vector (step 1), receives everything it is
// missing (step 2), and from then on both sides exchange update messages
// as transactions happen.
package ysync

import (
	"errors"

	"github.com/samthor/ycrdt/wire"
	"github.com/samthor/ycrdt/ydoc"
)

// Message kinds on the wire; each message is the kind followed by one
// length-prefixed payload.
const (
	MessageSyncStep1 = 0 // payload: state vector
	MessageSyncStep2 = 1 // payload: update with everything the peer lacks
	MessageUpdate    = 2 // payload: incremental update
)

// ErrBadMessage is reported for a sync message that cannot be parsed.
var ErrBadMessage = errors.New("ysync: malformed message")

// EncodeSyncStep1 builds the handshake message carrying doc's state vector.
func EncodeSyncStep1(doc *ydoc.Doc) []byte {
	var e wire.Encoder
	e.Int(MessageSyncStep1)
	e.Bytes(doc.EncodeStateVector())
	return e.Data()
}

// EncodeSyncStep2 builds the reply carrying everything a peer with the
// given state vector is missing.
func EncodeSyncStep2(doc *ydoc.Doc, sv []byte) ([]byte, error) {
	update, err := doc.EncodeStateAsUpdate(sv)
	if err != nil {
		return nil, err
	}

	var e wire.Encoder
	e.Int(MessageSyncStep2)
	e.Bytes(update)
	return e.Data(), nil
}

// EncodeUpdate wraps an incremental document update.
func EncodeUpdate(update []byte) []byte {
	var e wire.Encoder
	e.Int(MessageUpdate)
	e.Bytes(update)
	return e.Data()
}

// ReadSyncMessage applies one sync message to doc and returns the reply to
// send back, if any. The origin tag is forwarded to doc observers for
// updates applied here.
func ReadSyncMessage(msg []byte, doc *ydoc.Doc, origin any) (reply []byte, err error) {
	dec := wire.NewDecoder(msg)
	kind := dec.Int()
	payload := dec.Bytes()
	if dec.Err() != nil {
		return nil, ErrBadMessage
	}

	switch kind {
	case MessageSyncStep1:
		return EncodeSyncStep2(doc, payload)

	case MessageSyncStep2, MessageUpdate:
		return nil, doc.ApplyUpdate(payload, origin)
	}

	return nil, ErrBadMessage
}
