// Package aspect holds the per-category aspect vocabularies used for
// enrichment and pros/cons extraction.
package aspect

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Vocabulary maps category -> aspect name -> trigger keywords.
type Vocabulary map[string]map[string][]string

// CategoryGeneral is the fallback category when detection finds nothing.
const CategoryGeneral = "general"

// Default returns the built-in vocabulary. Callers may extend it with
// LoadFile.
func Default() Vocabulary {
	return Vocabulary{
		"wireless_earbuds": {
			"sound_quality":      {"sound", "audio", "music", "bass", "treble", "clarity", "crisp", "clear"},
			"noise_cancellation": {"noise", "cancellation", "anc", "isolation", "quiet", "cancel", "block"},
			"battery_life":       {"battery", "charge", "charging", "life", "power", "hours"},
			"comfort":            {"comfort", "fit", "comfortable", "ear", "pain", "hurt", "wear", "ergonomic"},
			"connectivity":       {"connection", "bluetooth", "pairing", "connect", "disconnect", "stable", "drop"},
			"build_quality":      {"build", "durable", "sturdy", "plastic", "premium", "solid"},
			"price_value":        {"price", "value", "money", "worth", "expensive", "cheap", "cost", "budget"},
			"call_quality":       {"call", "microphone", "mic", "voice", "phone", "talk"},
			"controls":           {"control", "touch", "button", "gesture", "volume", "skip", "pause"},
		},
		"standing_desk": {
			"stability":       {"stable", "wobble", "shake", "sturdy", "solid", "firm", "steady"},
			"motor_quality":   {"motor", "quiet", "smooth", "loud", "grinding", "operation"},
			"build_quality":   {"build", "construction", "materials", "durable", "cheap", "premium"},
			"assembly":        {"assembly", "setup", "install", "instructions", "parts", "tools", "easy", "difficult"},
			"height_range":    {"height", "range", "adjust", "tall", "short", "position"},
			"desktop_quality": {"desktop", "surface", "top", "scratch", "finish", "material"},
			"price_value":     {"price", "value", "money", "worth", "expensive", "cheap", "cost", "budget"},
			"features":        {"memory", "preset", "app", "smart", "programmable", "panel"},
		},
		"laptop": {
			"performance":   {"performance", "speed", "fast", "slow", "processor", "cpu", "ram"},
			"display":       {"display", "screen", "bright", "color", "resolution", "sharp", "crisp"},
			"battery_life":  {"battery", "charge", "charging", "life", "power", "hours"},
			"build_quality": {"build", "construction", "durable", "cheap", "premium", "solid"},
			"keyboard":      {"keyboard", "typing", "keys", "tactile", "responsive"},
			"trackpad":      {"trackpad", "touchpad", "cursor", "responsive", "smooth"},
			"ports":         {"ports", "usb", "hdmi", "connectivity", "dongles", "adapters"},
			"price_value":   {"price", "value", "money", "worth", "expensive", "cheap", "cost", "budget"},
			"weight":        {"weight", "heavy", "light", "portable", "carry", "thin"},
		},
		CategoryGeneral: {
			"quality":     {"quality", "build", "durable", "cheap", "premium", "solid", "sturdy"},
			"price_value": {"price", "value", "money", "worth", "expensive", "cheap", "cost", "budget"},
			"ease_of_use": {"easy", "difficult", "simple", "intuitive", "confusing", "setup"},
			"reliability": {"reliable", "broke", "broken", "defective", "failed", "lasted", "works"},
		},
	}
}

// LoadFile merges a YAML vocabulary file over v. File categories replace
// built-in categories of the same name.
func (v Vocabulary) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrap(err, "aspect: read vocab file")
	}
	var loaded Vocabulary
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return eris.Wrap(err, "aspect: parse vocab file")
	}
	for category, aspects := range loaded {
		v[category] = aspects
	}
	return nil
}

// ForCategory returns the aspect map for a category, falling back to the
// general vocabulary.
func (v Vocabulary) ForCategory(category string) map[string][]string {
	if aspects, ok := v[category]; ok {
		return aspects
	}
	return v[CategoryGeneral]
}

var categoryIndicators = map[string][]string{
	"wireless_earbuds": {"earbuds", "airpods", "headphones", "wireless", "buds"},
	"standing_desk":    {"desk", "standing", "sit-stand", "workstation"},
	"laptop":           {"laptop", "macbook", "notebook", "thinkpad"},
}

// DetectCategory guesses the product category from free text.
func DetectCategory(text string) string {
	lower := strings.ToLower(text)
	for _, category := range []string{"wireless_earbuds", "standing_desk", "laptop"} {
		for _, kw := range categoryIndicators[category] {
			if strings.Contains(lower, kw) {
				return category
			}
		}
	}
	return CategoryGeneral
}

// Mentions reports whether text mentions the aspect, given its keywords.
func Mentions(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
