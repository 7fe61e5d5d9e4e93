package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := Attributes{"tier": String("db-f1-micro"), "region": String("us-central1")}
	b := Attributes{"region": String("us-central1"), "tier": String("db-f1-micro")}

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)

	assert.Equal(t, fa, fb, "fingerprint must not depend on map construction order")
}

func TestFingerprint_DistinguishesValues(t *testing.T) {
	fa, err := Fingerprint(Attributes{"tier": String("db-f1-micro")})
	require.NoError(t, err)
	fb, err := Fingerprint(Attributes{"tier": String("db-custom-2")})
	require.NoError(t, err)

	assert.NotEqual(t, fa, fb)
}

func TestFingerprint_NFCNormalization(t *testing.T) {
	// U+00E9 (precomposed) vs U+0065 U+0301 (decomposed) must fingerprint
	// identically once NFC-normalized.
	fa, err := Fingerprint(Attributes{"name": String("café")})
	require.NoError(t, err)
	fb, err := Fingerprint(Attributes{"name": String("café")})
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
}

func TestFingerprint_NilAttributes(t *testing.T) {
	fa, err := Fingerprint(nil)
	require.NoError(t, err)
	fb, err := Fingerprint(Attributes{})
	require.NoError(t, err)

	assert.Equal(t, fa, fb, "nil and empty attributes are the same desired state")
}

func TestSecretDigest_DomainSeparated(t *testing.T) {
	plaintext := []byte("hunter2")

	// Same bytes through the attribute domain must not collide with the
	// secret domain: a fingerprint can never be used to confirm a secret.
	attrDigest, err := Fingerprint(Attributes{"v": String("hunter2")})
	require.NoError(t, err)

	assert.NotEqual(t, attrDigest, SecretDigest(plaintext))
	assert.Equal(t, SecretDigest(plaintext), SecretDigest([]byte("hunter2")))
	assert.NotEqual(t, SecretDigest(plaintext), SecretDigest([]byte("hunter3")))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical(String("a<b&c>d"))
	require.NoError(t, err)
	assert.Equal(t, `"a<b&c>d"`, string(b))
}

func TestMarshalCanonical_SortedObjectKeys(t *testing.T) {
	b, err := MarshalCanonical(Map{"b": Int(2), "a": Int(1)})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(b))
}
