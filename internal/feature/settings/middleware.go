package settings

import (
	"context"
	"errors"
)

// Middleware persists settings through the environment's Repository.
func Middleware(ctx context.Context, state State, action Action, env *Environment) (Action, bool) {
	switch action.(type) {
	case LoadSettings:
		loaded, err := env.Repository.Load(ctx)
		if err != nil {
			return LoadFailed{Reason: err.Error()}, true
		}
		return SettingsLoaded{Settings: loaded}, true

	case SaveSettings:
		state.LastError = ""
		if err := env.Repository.Save(ctx, state); err != nil {
			return SaveFailed{Reason: err.Error()}, true
		}
		env.Updated.Send(state)
		return nil, false

	case SelectVoice,
		UpdateLanguage,
		UpdateSpeechSpeed,
		UpdateShowDefinition,
		UpdateShowEnglish,
		UpdateDifficulty,
		UpdateColorScheme,
		UpdatePlaySound,
		UpdateStorySetting,
		DeleteCustomPrompt:
		return SaveSettings{}, true
	}
	return nil, false
}

// IsNotFound reports whether err means nothing has been saved yet.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
