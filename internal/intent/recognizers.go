package intent

import (
	"regexp"
	"strings"
	"unicode"
)

// quickMatchConfidence is the score for an exact command-trigger match
const quickMatchConfidence = 0.9

// WeatherRecognizer matches "@天气 <city>" style commands. The city is
// extracted from the parameter text by a Chinese place-name pattern,
// falling back to a dictionary of known cities, falling back to the
// configured default.
type WeatherRecognizer struct {
	commands    map[string]bool
	cityPattern *regexp.Regexp
	knownCities []string
	defaultCity string
}

// NewWeatherRecognizer creates the weather recognizer
func NewWeatherRecognizer() *WeatherRecognizer {
	return &WeatherRecognizer{
		commands: map[string]bool{
			"天气":   true,
			"查天气":  true,
			"查询天气": true,
		},
		cityPattern: regexp.MustCompile(`([一-龥]+?(?:省|市|区|县|镇))`),
		knownCities: []string{"北京", "上海", "广州", "深圳", "杭州", "西安"},
		defaultCity: "北京",
	}
}

// Analyze fails closed without the trigger or without parameter text
func (r *WeatherRecognizer) Analyze(text string) Match {
	command, params, ok := splitCommand(text)
	if !ok || !r.commands[command] || params == "" {
		return NoMatch()
	}

	return Match{
		Matched:    true,
		Intent:     TypeWeather,
		Confidence: quickMatchConfidence,
		Params:     map[string]string{"city": r.extractCity(params)},
	}
}

func (r *WeatherRecognizer) extractCity(text string) string {
	if m := r.cityPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, city := range r.knownCities {
		if strings.Contains(text, city) {
			return city
		}
	}
	return r.defaultCity
}

// TimeRecognizer matches bare time commands such as "@当前时间"
type TimeRecognizer struct {
	commands map[string]bool
}

// NewTimeRecognizer creates the time recognizer
func NewTimeRecognizer() *TimeRecognizer {
	return &TimeRecognizer{
		commands: map[string]bool{
			"时间":   true,
			"查时间":  true,
			"当前时间": true,
			"现在时间": true,
		},
	}
}

// Analyze matches only the full command with no trailing text
func (r *TimeRecognizer) Analyze(text string) Match {
	command, params, ok := splitCommand(text)
	if !ok || params != "" || !r.commands[command] {
		return NoMatch()
	}
	return Match{
		Matched:    true,
		Intent:     TypeTime,
		Confidence: quickMatchConfidence,
	}
}

// DatabaseQueryRecognizer matches natural-language datastore questions.
// It accepts both the command trigger ("@查询 ...") and a bare leading
// query verb ("查询 有多少条待办任务"); the remaining text is the
// question handed to the NL2Query executor, or the verb itself when the
// command stands alone.
type DatabaseQueryRecognizer struct {
	commands map[string]bool
}

// NewDatabaseQueryRecognizer creates the database-query recognizer
func NewDatabaseQueryRecognizer() *DatabaseQueryRecognizer {
	return &DatabaseQueryRecognizer{
		commands: map[string]bool{
			"查询":   true,
			"统计":   true,
			"查找":   true,
			"搜索":   true,
			"查询任务": true,
			"统计任务": true,
			"查找任务": true,
			"搜索任务": true,
			"任务列表": true,
			"任务统计": true,
		},
	}
}

// Analyze recognizes triggered and bare-verb query utterances
func (r *DatabaseQueryRecognizer) Analyze(text string) Match {
	command, params, ok := splitCommand(text)
	if !ok {
		command, params, ok = r.splitBare(text)
	}
	if !ok || !r.commands[command] {
		return NoMatch()
	}

	question := params
	if question == "" {
		question = command
	}
	return Match{
		Matched:    true,
		Intent:     TypeDatabaseQuery,
		Confidence: quickMatchConfidence,
		Params:     map[string]string{"question": question},
	}
}

// splitBare treats the first whitespace-delimited word as a candidate
// query verb. Verbs embedded later in free text do not match.
func (r *DatabaseQueryRecognizer) splitBare(text string) (command, params string, ok bool) {
	body := strings.TrimSpace(text)
	if body == "" {
		return "", "", false
	}
	idx := strings.IndexFunc(body, unicode.IsSpace)
	if idx < 0 {
		return body, "", true
	}
	return body[:idx], strings.TrimSpace(body[idx:]), true
}
