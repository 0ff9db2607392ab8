package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// Account sizes including the 8-byte discriminator.
const (
	DiscriminatorLength = 8
	HolderRecordSize    = DiscriminatorLength + PubkeyLength + 8*5
	RewardsVaultSize    = DiscriminatorLength + PubkeyLength + 8*2
)

// ErrAccountLayout is returned when account bytes do not match the expected layout.
var ErrAccountLayout = errors.New("account data does not match layout")

var (
	holderDiscriminator = accountDiscriminator("HolderData")
	vaultDiscriminator  = accountDiscriminator("RewardsVault")
)

// accountDiscriminator is the first 8 bytes of SHA256("account:<Name>").
func accountDiscriminator(name string) [DiscriminatorLength]byte {
	var d [DiscriminatorLength]byte
	sum := sha256.Sum256([]byte("account:" + name))
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// EncodeHolderRecord serializes r in the on-chain HolderData layout.
func EncodeHolderRecord(r *HolderRecord) []byte {
	buf := make([]byte, HolderRecordSize)
	copy(buf, holderDiscriminator[:])
	off := DiscriminatorLength
	copy(buf[off:], r.Authority[:])
	off += PubkeyLength

	le := binary.LittleEndian
	le.PutUint64(buf[off:], r.RewardsEarned)
	le.PutUint64(buf[off+8:], uint64(r.LastClaimTimestamp))
	le.PutUint64(buf[off+16:], uint64(r.LastTransferTimestamp))
	le.PutUint64(buf[off+24:], r.DailyTransactionCount)
	le.PutUint64(buf[off+32:], uint64(r.LastTransactionDay))
	return buf
}

// DecodeHolderRecord parses HolderData account bytes. Trailing bytes are ignored.
func DecodeHolderRecord(data []byte) (*HolderRecord, error) {
	if len(data) < HolderRecordSize {
		return nil, fmt.Errorf("holder record: %d bytes, need %d: %w", len(data), HolderRecordSize, ErrAccountLayout)
	}
	if [DiscriminatorLength]byte(data[:DiscriminatorLength]) != holderDiscriminator {
		return nil, fmt.Errorf("holder record: discriminator mismatch: %w", ErrAccountLayout)
	}

	var r HolderRecord
	off := DiscriminatorLength
	copy(r.Authority[:], data[off:off+PubkeyLength])
	off += PubkeyLength

	le := binary.LittleEndian
	r.RewardsEarned = le.Uint64(data[off:])
	r.LastClaimTimestamp = int64(le.Uint64(data[off+8:]))
	r.LastTransferTimestamp = int64(le.Uint64(data[off+16:]))
	r.DailyTransactionCount = le.Uint64(data[off+24:])
	r.LastTransactionDay = int64(le.Uint64(data[off+32:]))
	return &r, nil
}

// EncodeRewardsVault serializes v in the on-chain RewardsVault layout.
func EncodeRewardsVault(v *RewardsVault) []byte {
	buf := make([]byte, RewardsVaultSize)
	copy(buf, vaultDiscriminator[:])
	off := DiscriminatorLength
	copy(buf[off:], v.Authority[:])
	off += PubkeyLength

	binary.LittleEndian.PutUint64(buf[off:], v.TotalRewardsIssued)
	binary.LittleEndian.PutUint64(buf[off+8:], uint64(v.LastUpdateTimestamp))
	return buf
}

// DecodeRewardsVault parses RewardsVault account bytes. Trailing bytes are ignored.
func DecodeRewardsVault(data []byte) (*RewardsVault, error) {
	if len(data) < RewardsVaultSize {
		return nil, fmt.Errorf("rewards vault: %d bytes, need %d: %w", len(data), RewardsVaultSize, ErrAccountLayout)
	}
	if [DiscriminatorLength]byte(data[:DiscriminatorLength]) != vaultDiscriminator {
		return nil, fmt.Errorf("rewards vault: discriminator mismatch: %w", ErrAccountLayout)
	}

	var v RewardsVault
	off := DiscriminatorLength
	copy(v.Authority[:], data[off:off+PubkeyLength])
	off += PubkeyLength
	v.TotalRewardsIssued = binary.LittleEndian.Uint64(data[off:])
	v.LastUpdateTimestamp = int64(binary.LittleEndian.Uint64(data[off+8:]))
	return &v, nil
}
