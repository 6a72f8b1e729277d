package parsers

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/buger/jsonparser"

	"github.com/Chative-lead-agent/server/internal/agent/model"
	logx "github.com/Chative-lead-agent/server/pkg/logger"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 64 * 1024 // 64KB
	maxListItems  = 20        // per array field
	maxItemLen    = 200       // runes per list item or free-text value
	maxErrSnippet = 200       // limit error snippet size
)

const (
	keyPainPoints    = "painPoints"
	keyInterests     = "interests"
	keyObjections    = "objections"
	keyBudgetFlag    = "budgetMentioned"
	keyBudget        = "budget"
	keyTimelineFlag  = "timelineMentioned"
	keyTimeline      = "timeline"
	keyDecisionMaker = "decisionMakerConfirmed"
	keyCompanySize   = "companySize"
)

// undefinedToken matches a bare JavaScript undefined used as a value.
var undefinedToken = regexp.MustCompile(`([:\[,]\s*)undefined\b`)

// ParseSignals turns untrusted completion output into an Extraction. It never
// fails: anything it cannot read degrades to the zero value of that field, and
// what it had to repair is listed under ParsingMetadata["parsing_errors"].
func ParseSignals(content string) (out model.Extraction) {
	out = emptyExtraction()

	addErr := func(msg string) {
		v, _ := out.ParsingMetadata["parsing_errors"].([]string)
		out.ParsingMetadata["parsing_errors"] = append(v, msg)
	}

	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "signal_parser").Msgf("panic recovered: %v", r)
			out = emptyExtraction()
			addErr("panic")
		}
	}()

	// content length guard
	if len(content) > maxContentLen {
		logx.Warn().
			Str("component", "signal_parser").
			Int("max_len", maxContentLen).
			Int("orig_len", len(content)).
			Msg("content truncated due to size limit")
		content = content[:maxContentLen]
		out.ParsingMetadata["truncated"] = true
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		addErr(fmt.Sprintf("no_json_object: %s", safeSnippet(content)))
		return out
	}
	raw := content[start : end+1]
	if fixed := undefinedToken.ReplaceAllString(raw, "${1}null"); fixed != raw {
		out.ParsingMetadata["undefined_replaced"] = true
		raw = fixed
	}
	data := []byte(raw)

	out.PainPoints = readStrings(data, keyPainPoints, addErr)
	out.Interests = readStrings(data, keyInterests, addErr)
	out.Objections = readStrings(data, keyObjections, addErr)

	out.BudgetMentioned = readBool(data, keyBudgetFlag, addErr)
	out.TimelineMentioned = readBool(data, keyTimelineFlag, addErr)
	if out.BudgetMentioned {
		out.Budget = readString(data, keyBudget, addErr)
	}
	if out.TimelineMentioned {
		out.Timeline = readString(data, keyTimeline, addErr)
	}
	out.CompanySize = readString(data, keyCompanySize, addErr)

	switch v, typ, _, err := jsonparser.Get(data, keyDecisionMaker); {
	case err != nil || typ == jsonparser.Null:
		out.DecisionMaker = model.Unknown
	case typ == jsonparser.Boolean:
		b, perr := jsonparser.ParseBoolean(v)
		if perr != nil {
			addErr(keyDecisionMaker + ": invalid boolean")
			break
		}
		out.DecisionMaker = model.TriStateOf(b)
	default:
		addErr(keyDecisionMaker + ": not a boolean")
	}

	return out
}

func emptyExtraction() model.Extraction {
	return model.Extraction{
		PainPoints:      []string{},
		Interests:       []string{},
		Objections:      []string{},
		DecisionMaker:   model.Unknown,
		ParsingMetadata: map[string]any{"parser": "signals"},
	}
}

// readStrings collects the distinct non-empty string elements of an array field.
func readStrings(data []byte, key string, addErr func(string)) []string {
	v, typ, _, err := jsonparser.Get(data, key)
	if err != nil || typ == jsonparser.Null {
		return []string{}
	}
	if typ != jsonparser.Array {
		addErr(key + ": not an array")
		return []string{}
	}

	out := []string{}
	seen := map[string]struct{}{}
	skipped := 0
	_, aerr := jsonparser.ArrayEach(v, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
		if itemType != jsonparser.String {
			skipped++
			return
		}
		s, perr := jsonparser.ParseString(item)
		if perr != nil {
			skipped++
			return
		}
		s = clip(strings.TrimSpace(s))
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		if len(out) >= maxListItems {
			skipped++
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	})
	if aerr != nil {
		addErr(fmt.Sprintf("%s: %v", key, aerr))
	}
	if skipped > 0 {
		addErr(fmt.Sprintf("%s: skipped %d items", key, skipped))
	}
	return out
}

func readBool(data []byte, key string, addErr func(string)) bool {
	v, typ, _, err := jsonparser.Get(data, key)
	if err != nil || typ == jsonparser.Null {
		return false
	}
	if typ != jsonparser.Boolean {
		addErr(key + ": not a boolean")
		return false
	}
	b, err := jsonparser.ParseBoolean(v)
	if err != nil {
		addErr(key + ": invalid boolean")
		return false
	}
	return b
}

func readString(data []byte, key string, addErr func(string)) string {
	v, typ, _, err := jsonparser.Get(data, key)
	if err != nil || typ == jsonparser.Null {
		return ""
	}
	switch typ {
	case jsonparser.String:
		s, perr := jsonparser.ParseString(v)
		if perr != nil {
			addErr(key + ": invalid string")
			return ""
		}
		return clip(strings.TrimSpace(s))
	case jsonparser.Number:
		return string(v)
	default:
		addErr(key + ": not a string")
		return ""
	}
}

// clip bounds s to maxItemLen runes and drops invalid UTF-8.
func clip(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	if utf8.RuneCountInString(s) <= maxItemLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxItemLen])
}

func safeSnippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet]
}
