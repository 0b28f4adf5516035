package message

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTripOneTime(t *testing.T) {
	codec := NewCodec()
	record := Record{
		ID:        "abc",
		Content:   "hello",
		Policy:    OneTime(),
		CreatedAt: time.UnixMilli(1700000000000),
	}

	encoded, err := codec.Encode(record)
	require.NoError(t, err)

	decoded, err := codec.Decode("abc", encoded)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestCodecRoundTripTimeBasedBoundaries(t *testing.T) {
	codec := NewCodec()

	for _, minutes := range []int{1, 10, 1440} {
		record := Record{
			ID:        "def",
			Content:   "x",
			Policy:    TimeBased(minutes),
			CreatedAt: time.UnixMilli(1700000000000),
		}

		encoded, err := codec.Encode(record)
		require.NoError(t, err)

		decoded, err := codec.Decode("def", encoded)
		require.NoError(t, err)
		assert.Equal(t, record, decoded, "minutes=%d", minutes)
	}
}

func TestCodecEncodeOmitsValueForOneTime(t *testing.T) {
	codec := NewCodec()
	record := Record{
		ID:        "abc",
		Content:   "hello",
		Policy:    OneTime(),
		CreatedAt: time.Now(),
	}

	encoded, err := codec.Encode(record)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(encoded, &raw))
	assert.Equal(t, "null", string(raw["expirationValue"]))
	assert.Equal(t, `"one-time"`, string(raw["expirationType"]))
}

func TestCodecDecodeMalformedJSON(t *testing.T) {
	codec := NewCodec()

	_, err := codec.Decode("abc", []byte("{not json"))
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestCodecDecodeUnknownExpirationType(t *testing.T) {
	codec := NewCodec()

	_, err := codec.Decode("abc", []byte(`{"content":"x","expirationType":"forever","createdAt":1}`))
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestCodecDecodeTimeBasedMissingValue(t *testing.T) {
	codec := NewCodec()

	_, err := codec.Decode("abc", []byte(`{"content":"x","expirationType":"time-based","expirationValue":null,"createdAt":1}`))
	assert.ErrorIs(t, err, ErrDecodeFailed)
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, OneTime().Validate())
	assert.NoError(t, TimeBased(1).Validate())
	assert.NoError(t, TimeBased(10080).Validate())

	assert.ErrorIs(t, TimeBased(0).Validate(), ErrInvalidExpirationValue)
	assert.ErrorIs(t, TimeBased(-5).Validate(), ErrInvalidExpirationValue)
	assert.ErrorIs(t, TimeBased(10081).Validate(), ErrInvalidExpirationValue)
	assert.ErrorIs(t, ExpirationPolicy{Kind: "weekly"}.Validate(), ErrUnknownExpirationKind)
}

func TestPolicyTTL(t *testing.T) {
	assert.Equal(t, time.Duration(0), OneTime().TTL())
	assert.Equal(t, 10*time.Minute, TimeBased(10).TTL())
	assert.Equal(t, 600*time.Minute, TimeBased(600).TTL())
}

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent("hello"))
	assert.ErrorIs(t, ValidateContent(""), ErrEmptyContent)
}
