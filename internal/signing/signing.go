// Package signing authenticates mint claims. The authorized signer produces a
// 65-byte [R || S || V] secp256k1 signature over the claim digest; the
// service recovers the signer address and compares it to the configured one.
package signing

import (
	"crypto/ecdsa"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"bestiary/internal/issuance/models"
	dErrors "bestiary/pkg/domain-errors"
)

// ClaimDigest computes the keccak-256 digest a claim signature must cover.
// The label is length-prefixed so no two distinct claims share an encoding.
func ClaimDigest(c models.Claim) common.Hash {
	buf := make([]byte, 0, common.AddressLength+8*7+len(c.Label))
	buf = append(buf, c.Owner.Bytes()...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(c.Label)))
	buf = append(buf, c.Label...)
	buf = binary.BigEndian.AppendUint64(buf, c.GlobalRank)
	buf = binary.BigEndian.AppendUint64(buf, c.CohortID)
	buf = binary.BigEndian.AppendUint64(buf, c.CohortSize)
	buf = binary.BigEndian.AppendUint64(buf, c.CohortRank)
	buf = binary.BigEndian.AppendUint64(buf, c.Position)
	buf = binary.BigEndian.AppendUint64(buf, c.Score)
	return crypto.Keccak256Hash(buf)
}

// RecoverSigner recovers the address that signed the digest. Accepts both
// raw recovery IDs (0/1) and the legacy 27/28 convention.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, dErrors.New(dErrors.CodeBadSignature, "signature must be 65 bytes")
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, dErrors.Wrap(err, dErrors.CodeBadSignature, "signature recovery failed")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignClaim produces an authorizing signature for a claim. Only the off-chain
// authority holds the key in production; tests use it to mint fixtures.
func SignClaim(c models.Claim, key *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(ClaimDigest(c).Bytes(), key)
}
