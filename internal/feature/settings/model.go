package settings

import (
	"slices"

	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// SpeechSpeed is the narration speed.
type SpeechSpeed string

const (
	SpeedSlow   SpeechSpeed = "slow"
	SpeedNormal SpeechSpeed = "normal"
	SpeedFast   SpeechSpeed = "fast"
)

// Valid reports whether s is a known speed.
func (s SpeechSpeed) Valid() bool {
	switch s {
	case SpeedSlow, SpeedNormal, SpeedFast:
		return true
	}
	return false
}

// Next cycles slow → normal → fast → slow.
func (s SpeechSpeed) Next() SpeechSpeed {
	switch s {
	case SpeedSlow:
		return SpeedNormal
	case SpeedNormal:
		return SpeedFast
	}
	return SpeedSlow
}

// PlayRate is the audio playback multiplier.
func (s SpeechSpeed) PlayRate() float64 {
	switch s {
	case SpeedSlow:
		return 0.5
	case SpeedFast:
		return 1.5
	}
	return 1
}

// Difficulty controls story vocabulary.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
	Expert       Difficulty = "expert"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case Beginner, Intermediate, Advanced, Expert:
		return true
	}
	return false
}

// ColorScheme is the app appearance.
type ColorScheme string

const (
	Light ColorScheme = "light"
	Dark  ColorScheme = "dark"
)

// Valid reports whether c is a known scheme.
func (c ColorScheme) Valid() bool {
	return c == Light || c == Dark
}

// StorySetting picks where new stories come from: a random setting or one
// of the user's custom prompts.
type StorySetting struct {
	Kind   string `json:"kind"`
	Prompt string `json:"prompt,omitempty"`
}

// Story setting kinds.
const (
	KindRandom = "random"
	KindCustom = "custom"
)

// Random is the default story setting.
func Random() StorySetting { return StorySetting{Kind: KindRandom} }

// Custom selects prompt as the story setting.
func Custom(prompt string) StorySetting {
	return StorySetting{Kind: KindCustom, Prompt: NormalizePrompt(prompt)}
}

// NormalizePrompt puts a prompt in Unicode NFC so visually identical
// prompts compare equal.
func NormalizePrompt(prompt string) string {
	return norm.NFC.String(prompt)
}

// Voice is a narration voice for one language.
type Voice struct {
	Name      string // short identifier stored in State.Voice
	Synthesis string // speech synthesis voice name
	Language  language.Tag
}

var voices = []Voice{
	{"ava", "en-US-AvaNeural", language.AmericanEnglish},
	{"andrew", "en-US-AndrewNeural", language.AmericanEnglish},
	{"sonia", "en-GB-SoniaNeural", language.BritishEnglish},
	{"ryan", "en-GB-RyanNeural", language.BritishEnglish},
	{"xiaoxiao", "zh-CN-XiaoxiaoNeural", language.MustParse("zh-CN")},
	{"yunjian", "zh-CN-YunjianNeural", language.MustParse("zh-CN")},
	{"elvira", "es-ES-ElviraNeural", language.MustParse("es-ES")},
	{"alvaro", "es-ES-AlvaroNeural", language.MustParse("es-ES")},
	{"denise", "fr-FR-DeniseNeural", language.MustParse("fr-FR")},
	{"henri", "fr-FR-HenriNeural", language.MustParse("fr-FR")},
	{"fatima", "ar-AE-FatimaNeural", language.MustParse("ar-AE")},
	{"hamdan", "ar-AE-HamdanNeural", language.MustParse("ar-AE")},
	{"mayu", "ja-JP-MayuNeural", language.MustParse("ja-JP")},
	{"keita", "ja-JP-KeitaNeural", language.MustParse("ja-JP")},
	{"sunhi", "ko-KR-SunHiNeural", language.MustParse("ko-KR")},
	{"hyunsu", "ko-KR-HyunsuNeural", language.MustParse("ko-KR")},
	{"thalita", "pt-BR-ThalitaNeural", language.BrazilianPortuguese},
	{"donato", "pt-BR-DonatoNeural", language.BrazilianPortuguese},
	{"raquel", "pt-PT-RaquelNeural", language.EuropeanPortuguese},
	{"duarte", "pt-PT-DuarteNeural", language.EuropeanPortuguese},
	{"ananya", "hi-IN-AnanyaNeural", language.MustParse("hi-IN")},
	{"aarav", "hi-IN-AaravNeural", language.MustParse("hi-IN")},
	{"dariya", "ru-RU-DariyaNeural", language.MustParse("ru-RU")},
	{"dmitry", "ru-RU-DmitryNeural", language.MustParse("ru-RU")},
	{"amala", "de-DE-AmalaNeural", language.MustParse("de-DE")},
	{"conrad", "de-DE-ConradNeural", language.MustParse("de-DE")},
}

// Languages lists the supported study languages. The first is the fallback
// for the matcher and is never returned for an unsupported request.
var Languages = supportedLanguages()

var matcher = language.NewMatcher(Languages)

func supportedLanguages() []language.Tag {
	var tags []language.Tag
	for _, v := range voices {
		if !slices.Contains(tags, v.Language) {
			tags = append(tags, v.Language)
		}
	}
	return tags
}

// MatchLanguage resolves a BCP 47 tag to the closest supported language,
// so "fr" selects fr-FR. It reports false for unparsable or unsupported
// tags.
func MatchLanguage(tag string) (language.Tag, bool) {
	t, err := language.Parse(tag)
	if err != nil {
		return language.Und, false
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return language.Und, false
	}
	return Languages[idx], true
}

// VoicesFor returns the voices for a supported language, in preference
// order.
func VoicesFor(tag language.Tag) []Voice {
	var out []Voice
	for _, v := range voices {
		if v.Language == tag {
			out = append(out, v)
		}
	}
	return out
}

// LookupVoice finds a voice by its short name.
func LookupVoice(name string) (Voice, bool) {
	for _, v := range voices {
		if v.Name == name {
			return v, true
		}
	}
	return Voice{}, false
}
