package signing

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bestiary/internal/issuance/models"
	dErrors "bestiary/pkg/domain-errors"
)

func testClaim() models.Claim {
	return models.Claim{
		Owner:      crypto.PubkeyToAddress(mustKey().PublicKey),
		Label:      "ember drake",
		GlobalRank: 42,
		CohortID:   7,
		CohortSize: 100,
		CohortRank: 3,
		Position:   12,
		Score:      99_000,
	}
}

func mustKey() *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	if err != nil {
		panic(err)
	}
	return key
}

func TestSignAndRecoverRoundtrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	claim := testClaim()
	sig, err := SignClaim(claim, key)
	require.NoError(t, err)

	got, err := RecoverSigner(ClaimDigest(claim), sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), got)
}

func TestRecoverWrongKey(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	claim := testClaim()
	sig, err := SignClaim(claim, other)
	require.NoError(t, err)

	got, err := RecoverSigner(ClaimDigest(claim), sig)
	require.NoError(t, err)
	assert.NotEqual(t, crypto.PubkeyToAddress(signer.PublicKey), got)
}

func TestRecoverLegacyRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	claim := testClaim()
	sig, err := SignClaim(claim, key)
	require.NoError(t, err)

	sig[crypto.RecoveryIDOffset] += 27
	got, err := RecoverSigner(ClaimDigest(claim), sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), got)
}

func TestRecoverRejectsBadLength(t *testing.T) {
	_, err := RecoverSigner(ClaimDigest(testClaim()), make([]byte, 64))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadSignature))
}

func TestDigestBindsEveryField(t *testing.T) {
	base := testClaim()
	d := ClaimDigest(base)

	variants := []models.Claim{base, base, base, base, base, base, base}
	variants[0].Label = "ember drakes"
	variants[1].GlobalRank++
	variants[2].CohortID++
	variants[3].CohortSize++
	variants[4].CohortRank++
	variants[5].Position++
	variants[6].Score++

	for i, v := range variants {
		assert.NotEqual(t, d, ClaimDigest(v), "variant %d collided with base digest", i)
	}
}

// TestDigestLengthPrefix guards against sliding bytes between the label and
// the numeric fields producing the same encoding.
func TestDigestLengthPrefix(t *testing.T) {
	a := testClaim()
	a.Label = "ab"
	b := testClaim()
	b.Label = "a"

	assert.NotEqual(t, ClaimDigest(a), ClaimDigest(b))
}
