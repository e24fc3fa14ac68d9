package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeechSpeed(t *testing.T) {
	assert.Equal(t, SpeedNormal, SpeedSlow.Next())
	assert.Equal(t, SpeedFast, SpeedNormal.Next())
	assert.Equal(t, SpeedSlow, SpeedFast.Next())

	assert.Equal(t, 0.5, SpeedSlow.PlayRate())
	assert.Equal(t, 1.0, SpeedNormal.PlayRate())
	assert.Equal(t, 1.5, SpeedFast.PlayRate())

	assert.True(t, SpeedFast.Valid())
	assert.False(t, SpeechSpeed("ludicrous").Valid())
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"fr-FR", "fr-FR", true},
		{"en-GB", "en-GB", true},
		{"pt-PT", "pt-PT", true},
		{"zh-CN", "zh-CN", true},
		{"de", "de-DE", true},
		{"not a tag", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tag, ok := MatchLanguage(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, tag.String())
			}
		})
	}
}

func TestVoicesFor(t *testing.T) {
	tag, ok := MatchLanguage("fr-FR")
	require.True(t, ok)

	vs := VoicesFor(tag)
	require.Len(t, vs, 2)
	assert.Equal(t, "denise", vs[0].Name)
	assert.Equal(t, "fr-FR-HenriNeural", vs[1].Synthesis)
}

func TestLookupVoice(t *testing.T) {
	v, ok := LookupVoice("sonia")
	require.True(t, ok)
	assert.Equal(t, "en-GB", v.Language.String())

	_, ok = LookupVoice("hal")
	assert.False(t, ok)
}

func TestNormalizePrompt(t *testing.T) {
	decomposed := "cafe\u0301"
	assert.Equal(t, "caf\u00e9", NormalizePrompt(decomposed))
	assert.Equal(t, Custom("café"), Custom(decomposed))
}

func TestLanguagesCoverEveryVoice(t *testing.T) {
	for _, tag := range Languages {
		assert.Len(t, VoicesFor(tag), 2, tag.String())
	}
}
