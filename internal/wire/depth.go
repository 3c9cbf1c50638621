// Package wire encodes depth snapshots as fixed-header binary
// messages, in the same style as the teacher's internal/net message
// format: a fixed-width header of big-endian integer fields followed
// by a variable-length body, sized from counts carried in the header.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tidemark-systems/matchbook/internal/common"
	"github.com/tidemark-systems/matchbook/internal/depth"
)

var (
	ErrMessageTooShort = errors.New("wire: message too short")
	ErrTickerTooLong   = errors.New("wire: ticker exceeds 4 bytes")
)

// levelFieldLen is the wire size of one encoded depth.Level: price (8),
// open quantity (8), order count (4).
const levelFieldLen = 8 + 8 + 4

// depthHeaderLen is the fixed portion of a DepthSnapshot message:
// change id (8) + ticker (4) + bid count (2) + ask count (2).
const depthHeaderLen = 8 + 4 + 2 + 2

// DepthSnapshot is the wire-level view of a depth.Tracker at one
// instant, stamped with the change id it was published at.
type DepthSnapshot struct {
	ChangeID common.ChangeId
	Ticker   string
	Bids     []depth.Level
	Asks     []depth.Level
}

// EncodeDepthSnapshot serializes snap as a fixed-header binary message:
// change id, 4-byte ticker, bid/ask counts, then each side's levels in
// best-first order.
func EncodeDepthSnapshot(snap DepthSnapshot) ([]byte, error) {
	if len(snap.Ticker) > 4 {
		return nil, fmt.Errorf("%w: %q", ErrTickerTooLong, snap.Ticker)
	}

	total := depthHeaderLen + levelFieldLen*(len(snap.Bids)+len(snap.Asks))
	buf := make([]byte, total)

	binary.BigEndian.PutUint64(buf[0:8], uint64(snap.ChangeID))
	copy(buf[8:12], snap.Ticker)
	binary.BigEndian.PutUint16(buf[12:14], uint16(len(snap.Bids)))
	binary.BigEndian.PutUint16(buf[14:16], uint16(len(snap.Asks)))

	offset := depthHeaderLen
	for _, lvl := range snap.Bids {
		encodeLevel(buf[offset:offset+levelFieldLen], lvl)
		offset += levelFieldLen
	}
	for _, lvl := range snap.Asks {
		encodeLevel(buf[offset:offset+levelFieldLen], lvl)
		offset += levelFieldLen
	}
	return buf, nil
}

func encodeLevel(buf []byte, lvl depth.Level) {
	binary.BigEndian.PutUint64(buf[0:8], uint64(lvl.Price))
	binary.BigEndian.PutUint64(buf[8:16], uint64(lvl.OpenQty))
	binary.BigEndian.PutUint32(buf[16:20], uint32(lvl.OrderCount))
}

// DecodeDepthSnapshot parses a message produced by EncodeDepthSnapshot.
func DecodeDepthSnapshot(msg []byte) (DepthSnapshot, error) {
	if len(msg) < depthHeaderLen {
		return DepthSnapshot{}, ErrMessageTooShort
	}

	snap := DepthSnapshot{
		ChangeID: common.ChangeId(binary.BigEndian.Uint64(msg[0:8])),
		Ticker:   trimTrailingZeros(msg[8:12]),
	}
	bidCount := int(binary.BigEndian.Uint16(msg[12:14]))
	askCount := int(binary.BigEndian.Uint16(msg[14:16]))

	expected := depthHeaderLen + levelFieldLen*(bidCount+askCount)
	if len(msg) < expected {
		return DepthSnapshot{}, ErrMessageTooShort
	}

	offset := depthHeaderLen
	snap.Bids = make([]depth.Level, bidCount)
	for i := range snap.Bids {
		snap.Bids[i] = decodeLevel(msg[offset : offset+levelFieldLen])
		offset += levelFieldLen
	}
	snap.Asks = make([]depth.Level, askCount)
	for i := range snap.Asks {
		snap.Asks[i] = decodeLevel(msg[offset : offset+levelFieldLen])
		offset += levelFieldLen
	}
	return snap, nil
}

func decodeLevel(buf []byte) depth.Level {
	return depth.Level{
		Price:      common.Price(binary.BigEndian.Uint64(buf[0:8])),
		OpenQty:    common.Quantity(binary.BigEndian.Uint64(buf[8:16])),
		OrderCount: int(binary.BigEndian.Uint32(buf[16:20])),
	}
}

func trimTrailingZeros(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

// SnapshotFromTracker builds a DepthSnapshot ready to encode from a
// live depth tracker, stamped with its own change id (component-local
// sequencing only — no cross-symbol coordination is attempted; see
// DESIGN.md).
func SnapshotFromTracker(ticker string, tr *depth.Tracker) DepthSnapshot {
	return DepthSnapshot{
		ChangeID: tr.LastChange(),
		Ticker:   ticker,
		Bids:     tr.Bids(),
		Asks:     tr.Asks(),
	}
}
