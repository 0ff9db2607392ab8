package oracle

import (
	"encoding/binary"
	"fmt"

	"solana-token-guard/internal/domain"
)

// Pyth v2 price account layout (little-endian).
const (
	pythMagic       uint32 = 0xa1b2c3d4
	pythVersion2    uint32 = 2
	pythAccountType uint32 = 3 // price account

	offMagic       = 0
	offVersion     = 4
	offAccountType = 8
	offSize        = 12
	offPriceType   = 16
	offExponent    = 20
	offAggPrice    = 208
	offAggConf     = 216
	offAggStatus   = 224
	offAggCorpAct  = 228
	offAggPubSlot  = 232

	// PriceAccountMinSize covers the header and the aggregate price info.
	PriceAccountMinSize = 240
)

// PriceAccount is the subset of a Pyth price account the adapter reads.
type PriceAccount struct {
	Exponent       int32
	AggPrice       int64
	AggConfidence  uint64
	AggStatus      domain.TradingStatus
	AggPublishSlot uint64
}

// ParsePriceAccount decodes raw price account bytes.
// All structural failures wrap ErrUnparseable.
func ParsePriceAccount(data []byte) (*PriceAccount, error) {
	if len(data) < PriceAccountMinSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrUnparseable, len(data), PriceAccountMinSize)
	}

	le := binary.LittleEndian
	if magic := le.Uint32(data[offMagic:]); magic != pythMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrUnparseable, magic)
	}
	if ver := le.Uint32(data[offVersion:]); ver != pythVersion2 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrUnparseable, ver)
	}
	if at := le.Uint32(data[offAccountType:]); at != pythAccountType {
		return nil, fmt.Errorf("%w: account type %d is not a price account", ErrUnparseable, at)
	}

	acc := &PriceAccount{
		Exponent:       int32(le.Uint32(data[offExponent:])),
		AggPrice:       int64(le.Uint64(data[offAggPrice:])),
		AggConfidence:  le.Uint64(data[offAggConf:]),
		AggStatus:      domain.TradingStatus(le.Uint32(data[offAggStatus:])),
		AggPublishSlot: le.Uint64(data[offAggPubSlot:]),
	}

	// USD price accounts always scale down.
	if acc.Exponent > 0 {
		return nil, fmt.Errorf("%w: positive exponent %d", ErrUnparseable, acc.Exponent)
	}

	return acc, nil
}

// EncodePriceAccount builds price account bytes for a. Used by fixtures and
// local feeds that replay recorded prices.
func EncodePriceAccount(a PriceAccount) []byte {
	buf := make([]byte, PriceAccountMinSize)
	le := binary.LittleEndian
	le.PutUint32(buf[offMagic:], pythMagic)
	le.PutUint32(buf[offVersion:], pythVersion2)
	le.PutUint32(buf[offAccountType:], pythAccountType)
	le.PutUint32(buf[offSize:], PriceAccountMinSize)
	le.PutUint32(buf[offPriceType:], 1)
	le.PutUint32(buf[offExponent:], uint32(a.Exponent))
	le.PutUint64(buf[offAggPrice:], uint64(a.AggPrice))
	le.PutUint64(buf[offAggConf:], a.AggConfidence)
	le.PutUint32(buf[offAggStatus:], uint32(a.AggStatus))
	le.PutUint32(buf[offAggCorpAct:], 0)
	le.PutUint64(buf[offAggPubSlot:], a.AggPublishSlot)
	return buf
}
