// Package settings is the app settings feature: narration voice and
// speed, study language, difficulty, story prompts and display flags,
// persisted through a Repository.
//
// Every user-facing update is followed by a SaveSettings in the same flow.
// External sources (speech speed controls, the music toggle, the story
// picker, prompt entry) reach the store through the Environment's subjects.
package settings

import "github.com/roach88/storekit/internal/store"

// State is the persisted settings value.
type State struct {
	ShowDefinition           bool         `json:"show_definition"`
	ShowEnglish              bool         `json:"show_english"`
	PlayingMusic             bool         `json:"playing_music"`
	Voice                    string       `json:"voice"`
	SpeechSpeed              SpeechSpeed  `json:"speech_speed"`
	Difficulty               Difficulty   `json:"difficulty"`
	Language                 string       `json:"language"`
	CustomPrompt             string       `json:"custom_prompt"`
	StorySetting             StorySetting `json:"story_setting"`
	CustomPrompts            []string     `json:"custom_prompts"`
	ColorScheme              ColorScheme  `json:"color_scheme"`
	PlaySound                bool         `json:"play_sound"`
	ShowingCustomPromptAlert bool         `json:"showing_custom_prompt_alert"`

	// LastError is the reason of the most recent failed load or save.
	LastError string `json:"last_error,omitempty"`
}

// DefaultState is used until settings are loaded.
func DefaultState() State {
	return State{
		ShowDefinition:           true,
		ShowEnglish:              true,
		PlayingMusic:             true,
		Voice:                    "xiaoxiao",
		SpeechSpeed:              SpeedNormal,
		Difficulty:               Beginner,
		Language:                 "zh-CN",
		StorySetting:             Random(),
		CustomPrompts:            []string{},
		ColorScheme:              Dark,
		PlaySound:                true,
		ShowingCustomPromptAlert: true,
	}
}

// Store is a settings store.
type Store = store.Store[State, Action, *Environment]

// New creates a settings store wired to env's subjects.
func New(env *Environment, opts ...store.Option) *Store {
	opts = append(opts, store.WithSubscriber[State, Action, *Environment](Subscriber))
	return store.New(DefaultState(), Reduce, env, Middleware, opts...)
}
