package settings

import (
	"fmt"

	"github.com/roach88/storekit/internal/harness"
)

// Action is any settings action.
type Action interface{ isSettingsAction() }

type (
	LoadSettings   struct{}
	SaveSettings   struct{}
	SettingsLoaded struct {
		Settings State `json:"settings"`
	}
	LoadFailed struct {
		Reason string `json:"reason"`
	}
	SaveFailed struct {
		Reason string `json:"reason"`
	}

	SelectVoice struct {
		Voice string `json:"voice"`
	}
	UpdateLanguage struct {
		Language string `json:"language"`
	}
	UpdateSpeechSpeed struct {
		Speed SpeechSpeed `json:"speed"`
	}
	UpdateShowDefinition struct {
		Show bool `json:"show"`
	}
	UpdateShowEnglish struct {
		Show bool `json:"show"`
	}
	UpdateDifficulty struct {
		Difficulty Difficulty `json:"difficulty"`
	}
	UpdateColorScheme struct {
		Scheme ColorScheme `json:"scheme"`
	}
	UpdatePlaySound struct {
		Play bool `json:"play"`
	}
	UpdateCustomPrompt struct {
		Prompt string `json:"prompt"`
	}
	UpdateStorySetting struct {
		Setting StorySetting `json:"setting"`
	}
	DeleteCustomPrompt struct {
		Prompt string `json:"prompt"`
	}
	UpdateShowingCustomPromptAlert struct {
		Show bool `json:"show"`
	}
)

func (LoadSettings) isSettingsAction()                   {}
func (SaveSettings) isSettingsAction()                   {}
func (SettingsLoaded) isSettingsAction()                 {}
func (LoadFailed) isSettingsAction()                     {}
func (SaveFailed) isSettingsAction()                     {}
func (SelectVoice) isSettingsAction()                    {}
func (UpdateLanguage) isSettingsAction()                 {}
func (UpdateSpeechSpeed) isSettingsAction()              {}
func (UpdateShowDefinition) isSettingsAction()           {}
func (UpdateShowEnglish) isSettingsAction()              {}
func (UpdateDifficulty) isSettingsAction()               {}
func (UpdateColorScheme) isSettingsAction()              {}
func (UpdatePlaySound) isSettingsAction()                {}
func (UpdateCustomPrompt) isSettingsAction()             {}
func (UpdateStorySetting) isSettingsAction()             {}
func (DeleteCustomPrompt) isSettingsAction()             {}
func (UpdateShowingCustomPromptAlert) isSettingsAction() {}

var decoders = map[string]harness.Decoder[Action]{
	"LoadSettings":                   decodeAs[LoadSettings],
	"SaveSettings":                   decodeAs[SaveSettings],
	"SettingsLoaded":                 decodeAs[SettingsLoaded],
	"LoadFailed":                     decodeAs[LoadFailed],
	"SaveFailed":                     decodeAs[SaveFailed],
	"SelectVoice":                    decodeAs[SelectVoice],
	"UpdateLanguage":                 decodeAs[UpdateLanguage],
	"UpdateSpeechSpeed":              decodeAs[UpdateSpeechSpeed],
	"UpdateShowDefinition":           decodeAs[UpdateShowDefinition],
	"UpdateShowEnglish":              decodeAs[UpdateShowEnglish],
	"UpdateDifficulty":               decodeAs[UpdateDifficulty],
	"UpdateColorScheme":              decodeAs[UpdateColorScheme],
	"UpdatePlaySound":                decodeAs[UpdatePlaySound],
	"UpdateCustomPrompt":             decodeAs[UpdateCustomPrompt],
	"UpdateStorySetting":             decodeAs[UpdateStorySetting],
	"DeleteCustomPrompt":             decodeAs[DeleteCustomPrompt],
	"UpdateShowingCustomPromptAlert": decodeAs[UpdateShowingCustomPromptAlert],
}

func decodeAs[T Action](_ string, args map[string]any) (Action, error) {
	return harness.DecodeArgs[T](args)
}

// DecodeAction builds a settings action from its name and fields.
func DecodeAction(name string, args map[string]any) (Action, error) {
	decode, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("unknown settings action %q", name)
	}
	return decode(name, args)
}
