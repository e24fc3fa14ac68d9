package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReduce(t *testing.T) {
	base := DefaultState()

	withPrompts := func(prompts ...string) State {
		s := DefaultState()
		s.CustomPrompts = prompts
		return s
	}

	tests := []struct {
		name   string
		state  State
		action Action
		check  func(t *testing.T, got State)
	}{
		{"speech speed", base, UpdateSpeechSpeed{Speed: SpeedFast}, func(t *testing.T, got State) {
			assert.Equal(t, SpeedFast, got.SpeechSpeed)
		}},
		{"invalid speech speed ignored", base, UpdateSpeechSpeed{Speed: "warp"}, func(t *testing.T, got State) {
			assert.Equal(t, base, got)
		}},
		{"language switches voice", base, UpdateLanguage{Language: "fr-FR"}, func(t *testing.T, got State) {
			assert.Equal(t, "fr-FR", got.Language)
			assert.Equal(t, "denise", got.Voice)
		}},
		{"same language keeps voice", func() State {
			s := DefaultState()
			s.Voice = "yunjian"
			return s
		}(), UpdateLanguage{Language: "zh-CN"}, func(t *testing.T, got State) {
			assert.Equal(t, "yunjian", got.Voice)
		}},
		{"unsupported language ignored", base, UpdateLanguage{Language: "??"}, func(t *testing.T, got State) {
			assert.Equal(t, base, got)
		}},
		{"select known voice", base, SelectVoice{Voice: "ryan"}, func(t *testing.T, got State) {
			assert.Equal(t, "ryan", got.Voice)
		}},
		{"select unknown voice ignored", base, SelectVoice{Voice: "hal"}, func(t *testing.T, got State) {
			assert.Equal(t, "xiaoxiao", got.Voice)
		}},
		{"difficulty", base, UpdateDifficulty{Difficulty: Expert}, func(t *testing.T, got State) {
			assert.Equal(t, Expert, got.Difficulty)
		}},
		{"color scheme", base, UpdateColorScheme{Scheme: Light}, func(t *testing.T, got State) {
			assert.Equal(t, Light, got.ColorScheme)
		}},
		{"flags", base, UpdateShowEnglish{Show: false}, func(t *testing.T, got State) {
			assert.False(t, got.ShowEnglish)
			assert.True(t, got.ShowDefinition)
		}},
		{"new custom story adds prompt", base, UpdateStorySetting{Setting: Custom("space pirates")}, func(t *testing.T, got State) {
			assert.Equal(t, Custom("space pirates"), got.StorySetting)
			assert.Equal(t, []string{"space pirates"}, got.CustomPrompts)
		}},
		{"existing custom story not duplicated", withPrompts("space pirates"), UpdateStorySetting{Setting: Custom("space pirates")}, func(t *testing.T, got State) {
			assert.Equal(t, []string{"space pirates"}, got.CustomPrompts)
		}},
		{"random story", withPrompts("a"), UpdateStorySetting{Setting: Random()}, func(t *testing.T, got State) {
			assert.Equal(t, Random(), got.StorySetting)
			assert.Equal(t, []string{"a"}, got.CustomPrompts)
		}},
		{"delete selected prompt resets story", func() State {
			s := withPrompts("a", "b")
			s.StorySetting = Custom("b")
			return s
		}(), DeleteCustomPrompt{Prompt: "b"}, func(t *testing.T, got State) {
			assert.Equal(t, []string{"a"}, got.CustomPrompts)
			assert.Equal(t, Random(), got.StorySetting)
		}},
		{"custom prompt normalized", base, UpdateCustomPrompt{Prompt: "cafe\u0301"}, func(t *testing.T, got State) {
			assert.Equal(t, "caf\u00e9", got.CustomPrompt)
		}},
		{"failures recorded", base, SaveFailed{Reason: "disk full"}, func(t *testing.T, got State) {
			assert.Equal(t, "disk full", got.LastError)
		}},
		{"loaded replaces state", base, SettingsLoaded{Settings: State{Language: "ja-JP", Voice: "mayu"}}, func(t *testing.T, got State) {
			assert.Equal(t, "ja-JP", got.Language)
			assert.Equal(t, []string{}, got.CustomPrompts)
			assert.False(t, got.PlaySound)
		}},
		{"load and save are no-ops", base, LoadSettings{}, func(t *testing.T, got State) {
			assert.Equal(t, base, got)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, Reduce(tt.state, tt.action))
		})
	}
}

func TestReduce_DoesNotAliasPrompts(t *testing.T) {
	prompts := make([]string, 1, 4)
	prompts[0] = "a"
	state := DefaultState()
	state.CustomPrompts = prompts

	next := Reduce(state, UpdateStorySetting{Setting: Custom("b")})

	assert.Equal(t, []string{"a"}, state.CustomPrompts)
	assert.Equal(t, []string{"a", "b"}, next.CustomPrompts)
	assert.Equal(t, "a", prompts[:2][0])
	assert.Empty(t, prompts[:2][1], "previous state's backing array untouched")
}
