package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_Valid(t *testing.T) {
	ch, conv := uuid.New(), uuid.New()
	nilID := uuid.Nil

	assert.True(t, ChannelScope(ch).Valid())
	assert.True(t, ConversationScope(conv).Valid())
	assert.False(t, Scope{}.Valid())
	assert.False(t, Scope{ChannelID: &ch, ConversationID: &conv}.Valid())
	assert.False(t, Scope{ChannelID: &nilID}.Valid())
}

func TestScope_Equal(t *testing.T) {
	id := uuid.New()
	other := id
	assert.True(t, ChannelScope(id).Equal(ChannelScope(other)))
	assert.False(t, ChannelScope(id).Equal(ConversationScope(id)))
	assert.False(t, ChannelScope(id).Equal(ChannelScope(uuid.New())))
}

func TestPairKey_Unordered(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, PairKey(a, b), PairKey(b, a))
	assert.NotEqual(t, PairKey(a, b), PairKey(a, uuid.New()))
}

func TestUserSnapshot_DisplayName(t *testing.T) {
	first, last, blank := "Ana", "Kovač", "  "

	assert.Equal(t, "Ana", UserSnapshot{FirstName: &first, LastName: &last}.DisplayName())
	assert.Equal(t, "Kovač", UserSnapshot{FirstName: &blank, LastName: &last}.DisplayName())
	assert.Equal(t, "Unknown User", UserSnapshot{}.DisplayName())
}

func TestSettingValue_EncodeDecode(t *testing.T) {
	cases := []SettingValue{
		BoolValue(true),
		StringValue("dark"),
		NumberValue(42.5),
		JSONValue([]byte(`{"a": [1, 2]}`)),
	}
	for _, v := range cases {
		text, err := v.Encode()
		require.NoError(t, err)

		got, err := DecodeSettingValue(v.Kind, text)
		require.NoError(t, err)
		assert.Equal(t, v.Kind, got.Kind)
		assert.Equal(t, v.Bool, got.Bool)
		assert.Equal(t, v.String, got.String)
		assert.Equal(t, v.Number, got.Number)
	}
}

func TestSettingValue_EncodeRejectsInvalidJSON(t *testing.T) {
	_, err := JSONValue([]byte(`{"a":`)).Encode()
	assert.Error(t, err)
}

func TestDecodeSettingValue_LegacyFallback(t *testing.T) {
	v, err := DecodeSettingValue("", "true")
	require.NoError(t, err)
	assert.Equal(t, KindBool, v.Kind)
	assert.True(t, v.Bool)

	v, err = DecodeSettingValue("", `{"x":1}`)
	require.NoError(t, err)
	assert.Equal(t, KindJSON, v.Kind)

	v, err = DecodeSettingValue("", "not json at all")
	require.NoError(t, err)
	assert.Equal(t, KindString, v.Kind)
	assert.Equal(t, "not json at all", v.String)
}

func TestNewScope_DropsNilIDs(t *testing.T) {
	ch, nilID := uuid.New(), uuid.Nil

	s := NewScope(&ch, &nilID)
	assert.True(t, s.Valid())
	assert.Nil(t, s.ConversationID)
	assert.False(t, NewScope(nil, nil).Valid())
}

func TestParseSettingValue(t *testing.T) {
	v, err := ParseSettingValue([]byte(`true`), "")
	require.NoError(t, err)
	assert.Equal(t, BoolValue(true), v)

	v, err = ParseSettingValue([]byte(`"instance_key"`), KindString)
	require.NoError(t, err)
	assert.Equal(t, "instance_key", v.String)

	v, err = ParseSettingValue([]byte(`{"a": 1}`), KindJSON)
	require.NoError(t, err)
	assert.Equal(t, KindJSON, v.Kind)

	_, err = ParseSettingValue([]byte(`12`), KindBool)
	assert.Error(t, err)

	_, err = ParseSettingValue([]byte(`{nope`), "")
	assert.Error(t, err)
}
