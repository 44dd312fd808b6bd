package language

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	xlang "golang.org/x/text/language"
)

type entry struct {
	code    string   // Translation code (e.g. "zh-cn"), also ISO 639-1 where one exists
	code3   string   // ISO 639-2 primary (3-letter)
	alt3    string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	display string   // Human-readable name
	words   []string // Extra word forms accepted on input
}

const autoCode = "auto"

var languages = []entry{
	{autoCode, "", "", "Auto", []string{"detect"}},
	{"af", "afr", "", "Afrikaans", nil},
	{"ar", "ara", "", "Arabic", nil},
	{"zh-cn", "zho", "chi", "Chinese (Simplified)", []string{"chinese", "zh", "zh-hans"}},
	{"zh-tw", "", "", "Chinese (Traditional)", []string{"zh-hant"}},
	{"da", "dan", "", "Danish", nil},
	{"nl", "nld", "dut", "Dutch", nil},
	{"en", "eng", "", "English", nil},
	{"tl", "tgl", "fil", "Filipino", []string{"tagalog"}},
	{"fi", "fin", "", "Finnish", nil},
	{"fr", "fra", "fre", "French", nil},
	{"de", "deu", "ger", "German", nil},
	{"haw", "haw", "", "Hawaiian", nil},
	{"hi", "hin", "", "Hindi", nil},
	{"hu", "hun", "", "Hungarian", nil},
	{"id", "ind", "", "Indonesian", nil},
	{"it", "ita", "", "Italian", nil},
	{"ja", "jpn", "", "Japanese", nil},
	{"jw", "jav", "", "Javanese", []string{"jv"}},
	{"ko", "kor", "", "Korean", nil},
	{"lo", "lao", "", "Lao", nil},
	{"ms", "msa", "may", "Malay", []string{"bahasa melayu"}},
	{"my", "mya", "bur", "Myanmar (Burmese)", []string{"burmese", "myanmar"}},
	{"ne", "nep", "", "Nepali", nil},
	{"no", "nor", "", "Norwegian", nil},
	{"fa", "fas", "per", "Persian", nil},
	{"pl", "pol", "", "Polish", nil},
	{"pt", "por", "", "Portuguese", nil},
	{"ru", "rus", "", "Russian", nil},
	{"sm", "smo", "", "Samoan", nil},
	{"es", "spa", "", "Spanish", nil},
	{"sv", "swe", "", "Swedish", nil},
	{"ta", "tam", "", "Tamil", nil},
	{"th", "tha", "", "Thai", nil},
	{"tr", "tur", "", "Turkish", nil},
}

var index map[string]*entry

func init() {
	index = make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		index[e.code] = e
		index[strings.ToLower(e.display)] = e
		if e.code3 != "" {
			index[e.code3] = e
		}
		if e.alt3 != "" {
			index[e.alt3] = e
		}
		for _, w := range e.words {
			index[w] = e
		}
	}
}

// Language is a selectable source or target language.
type Language struct {
	Code string
	Name string
}

// IsAuto reports whether the language asks the backend to detect the source language.
func (l Language) IsAuto() bool {
	return l.Code == autoCode
}

// ISO2 returns the base ISO 639-1 code ("zh" for "zh-cn"), or "" for auto.
func (l Language) ISO2() string {
	if l.IsAuto() || l.Code == "" {
		return ""
	}
	code, _, _ := strings.Cut(l.Code, "-")
	return code
}

// Suffix returns a file name friendly form of the language name, e.g.
// "Chinese-Simplified" for "Chinese (Simplified)".
func (l Language) Suffix() string {
	fields := strings.FieldsFunc(l.Name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "-")
}

func (l Language) String() string {
	return l.Name
}

// Lookup resolves a language name, code, or ISO 639-2 code. Unknown but
// well-formed BCP 47 tags are accepted with a title-cased code as their name.
func Lookup(value string) (Language, bool) {
	key := strings.ToLower(strings.TrimSpace(value))
	if key == "" {
		return Language{}, false
	}
	key = strings.ReplaceAll(key, "_", "-")
	if e, ok := index[key]; ok {
		return Language{Code: e.code, Name: e.display}, true
	}
	tag, err := xlang.Parse(key)
	if err != nil {
		return Language{}, false
	}
	base, confidence := tag.Base()
	if confidence == xlang.No {
		return Language{}, false
	}
	if e, ok := index[base.String()]; ok {
		return Language{Code: e.code, Name: e.display}, true
	}
	if len(key) > 3 && !strings.Contains(key, "-") {
		// Free-form words that parse as tags by accident are not languages.
		return Language{}, false
	}
	return Language{Code: key, Name: cases.Title(xlang.Und).String(key)}, true
}

// All returns the known languages in display order, Auto first.
func All() []Language {
	out := make([]Language, 0, len(languages))
	for _, e := range languages {
		out = append(out, Language{Code: e.code, Name: e.display})
	}
	return out
}

// ToISO2 converts any recognized language code or word to ISO 639-1 (2-letter).
// Returns empty string for unrecognized input and for auto.
func ToISO2(code string) string {
	lang, ok := Lookup(code)
	if !ok {
		return ""
	}
	return lang.ISO2()
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if lang, ok := Lookup(code); ok {
		return lang.Name
	}
	return strings.ToUpper(strings.TrimSpace(code))
}
