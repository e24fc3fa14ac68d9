package settings

import "slices"

// Reduce is the settings reducer. Invalid values (unknown voices, speeds,
// unsupported languages) leave the state unchanged.
func Reduce(state State, action Action) State {
	switch a := action.(type) {
	case SettingsLoaded:
		state = a.Settings
		state.CustomPrompts = slices.Clone(a.Settings.CustomPrompts)
		if state.CustomPrompts == nil {
			state.CustomPrompts = []string{}
		}

	case LoadFailed:
		state.LastError = a.Reason

	case SaveFailed:
		state.LastError = a.Reason

	case UpdateSpeechSpeed:
		if a.Speed.Valid() {
			state.SpeechSpeed = a.Speed
		}

	case UpdateShowDefinition:
		state.ShowDefinition = a.Show

	case UpdateShowEnglish:
		state.ShowEnglish = a.Show

	case SelectVoice:
		if _, ok := LookupVoice(a.Voice); ok {
			state.Voice = a.Voice
		}

	case UpdateDifficulty:
		if a.Difficulty.Valid() {
			state.Difficulty = a.Difficulty
		}

	case UpdateLanguage:
		tag, ok := MatchLanguage(a.Language)
		if !ok || tag.String() == state.Language {
			break
		}
		state.Language = tag.String()
		if vs := VoicesFor(tag); len(vs) > 0 {
			state.Voice = vs[0].Name
		}

	case UpdateCustomPrompt:
		state.CustomPrompt = NormalizePrompt(a.Prompt)

	case UpdateStorySetting:
		setting := a.Setting
		if setting.Kind == KindCustom {
			setting = Custom(setting.Prompt)
			if !slices.Contains(state.CustomPrompts, setting.Prompt) {
				state.CustomPrompts = append(slices.Clone(state.CustomPrompts), setting.Prompt)
			}
		} else {
			setting = Random()
		}
		state.StorySetting = setting

	case UpdateShowingCustomPromptAlert:
		state.ShowingCustomPromptAlert = a.Show

	case DeleteCustomPrompt:
		prompt := NormalizePrompt(a.Prompt)
		state.CustomPrompts = slices.DeleteFunc(slices.Clone(state.CustomPrompts), func(p string) bool {
			return p == prompt
		})
		if state.StorySetting == Custom(prompt) {
			state.StorySetting = Random()
		}

	case UpdateColorScheme:
		if a.Scheme.Valid() {
			state.ColorScheme = a.Scheme
		}

	case UpdatePlaySound:
		state.PlaySound = a.Play
	}

	return state
}
