package signing_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhil-rao/ap2-aani-demo/internal/signing"
)

func newSigner(t *testing.T) *signing.Signer {
	t.Helper()
	s, err := signing.NewSigner(signing.DefaultKey)
	require.NoError(t, err)
	return s
}

func TestNewSigner_EmptyKey(t *testing.T) {
	_, err := signing.NewSigner("")
	assert.ErrorIs(t, err, signing.ErrEmptyKey)
}

func TestCanonicalize_SortsNestedKeys(t *testing.T) {
	got, err := signing.Canonicalize(map[string]any{
		"b": 2,
		"a": map[string]any{"z": true, "y": "v"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":"v","z":true},"b":2}`, string(got))
}

func TestSign_KnownVector(t *testing.T) {
	sig, err := newSigner(t).Sign(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, "HnX8HxNybeCDIpf6q8cDCW3k5m3d5CzRjyh9Hqjz3k8=", sig)
}

func TestSign_KeyOrderInvariant(t *testing.T) {
	s := newSigner(t)
	ab, err := s.Sign(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	ba, err := s.Sign(map[string]any{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestSign_StructAndMapAgree(t *testing.T) {
	s := newSigner(t)
	fromStruct, err := s.Sign(struct {
		B int `json:"b"`
		A int `json:"a"`
	}{B: 2, A: 1})
	require.NoError(t, err)
	fromMap, err := s.Sign(map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, fromMap, fromStruct)
}

func TestSign_ValueChangeChangesTag(t *testing.T) {
	s := newSigner(t)
	one, err := s.Sign(map[string]any{"a": 1})
	require.NoError(t, err)
	two, err := s.Sign(map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, one, two)
}

func TestSign_KeyChangesTag(t *testing.T) {
	other, err := signing.NewSigner("another-key")
	require.NoError(t, err)
	payload := map[string]any{"mandate_id": "M-1"}
	a, err := newSigner(t).Sign(payload)
	require.NoError(t, err)
	b, err := other.Sign(payload)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSign_UnencodablePayload(t *testing.T) {
	_, err := newSigner(t).Sign(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	s := newSigner(t)
	payload := map[string]any{"mandate_id": "M-ABC", "txid": "TX-123"}
	sig, err := s.Sign(payload)
	require.NoError(t, err)

	ok, err := s.Verify(payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Verify(map[string]any{"mandate_id": "M-ABC", "txid": "TX-124"}, sig)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Verify(payload, "not base64!")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSign_Properties(t *testing.T) {
	s := newSigner(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("tag is independent of key insertion order", prop.ForAll(
		func(m map[string]int) bool {
			keys := make([]string, 0, len(m))
			for k := range m {
				keys = append(keys, k)
			}
			rebuilt := make(map[string]any, len(m))
			for i := len(keys) - 1; i >= 0; i-- {
				rebuilt[keys[i]] = m[keys[i]]
			}
			a, err1 := s.Sign(m)
			b, err2 := s.Sign(rebuilt)
			return err1 == nil && err2 == nil && a == b
		},
		gen.MapOf(gen.AlphaString(), gen.Int()),
	))

	properties.Property("tag verifies", prop.ForAll(
		func(k, v string) bool {
			payload := map[string]any{k: v}
			sig, err := s.Sign(payload)
			if err != nil {
				return false
			}
			ok, err := s.Verify(payload, sig)
			return err == nil && ok
		},
		gen.AlphaString(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
