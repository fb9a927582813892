// Copyright 2024-2026 Aiku AI

package slackfmt

import (
	"regexp"
	"strings"
)

var (
	shortcodeRe = regexp.MustCompile(`:([a-z0-9_+\-']+):`)
	skinToneRe  = regexp.MustCompile(`::skin-tone-[2-6]:`)
)

// emojiMap maps Slack emoji aliases to Unicode. Custom workspace emoji have
// no Unicode form and are left as :shortcode:.
var emojiMap = map[string]string{
	"+1":                       "\U0001f44d",
	"thumbsup":                 "\U0001f44d",
	"-1":                       "\U0001f44e",
	"thumbsdown":               "\U0001f44e",
	"heart":                    "❤️",
	"broken_heart":             "\U0001f494",
	"smile":                    "\U0001f604",
	"smiley":                   "\U0001f603",
	"grinning":                 "\U0001f600",
	"grin":                     "\U0001f601",
	"joy":                      "\U0001f602",
	"laughing":                 "\U0001f606",
	"satisfied":                "\U0001f606",
	"sweat_smile":              "\U0001f605",
	"slightly_smiling_face":    "\U0001f642",
	"upside_down_face":         "\U0001f643",
	"wink":                     "\U0001f609",
	"blush":                    "\U0001f60a",
	"innocent":                 "\U0001f607",
	"heart_eyes":               "\U0001f60d",
	"kissing_heart":            "\U0001f618",
	"yum":                      "\U0001f60b",
	"stuck_out_tongue":         "\U0001f61b",
	"sunglasses":               "\U0001f60e",
	"smirk":                    "\U0001f60f",
	"neutral_face":             "\U0001f610",
	"expressionless":           "\U0001f611",
	"unamused":                 "\U0001f612",
	"sweat":                    "\U0001f613",
	"pensive":                  "\U0001f614",
	"confused":                 "\U0001f615",
	"disappointed":             "\U0001f61e",
	"worried":                  "\U0001f61f",
	"angry":                    "\U0001f620",
	"rage":                     "\U0001f621",
	"cry":                      "\U0001f622",
	"sob":                      "\U0001f62d",
	"scream":                   "\U0001f631",
	"astonished":               "\U0001f632",
	"open_mouth":               "\U0001f62e",
	"sleeping":                 "\U0001f634",
	"thinking_face":            "\U0001f914",
	"thinking":                 "\U0001f914",
	"face_with_rolling_eyes":   "\U0001f644",
	"exploding_head":           "\U0001f92f",
	"partying_face":            "\U0001f973",
	"wave":                     "\U0001f44b",
	"clap":                     "\U0001f44f",
	"raised_hands":             "\U0001f64c",
	"pray":                     "\U0001f64f",
	"muscle":                   "\U0001f4aa",
	"ok_hand":                  "\U0001f44c",
	"point_up":                 "☝️",
	"point_right":              "\U0001f449",
	"point_left":               "\U0001f448",
	"v":                        "✌️",
	"eyes":                     "\U0001f440",
	"fire":                     "\U0001f525",
	"100":                      "\U0001f4af",
	"tada":                     "\U0001f389",
	"rocket":                   "\U0001f680",
	"star":                     "⭐",
	"sparkles":                 "✨",
	"zap":                      "⚡",
	"boom":                     "\U0001f4a5",
	"white_check_mark":         "✅",
	"heavy_check_mark":         "✔️",
	"x":                        "❌",
	"warning":                  "⚠️",
	"no_entry":                 "⛔",
	"question":                 "❓",
	"exclamation":              "❗",
	"bulb":                     "\U0001f4a1",
	"memo":                     "\U0001f4dd",
	"calendar":                 "\U0001f4c6",
	"coffee":                   "☕",
	"beer":                     "\U0001f37a",
	"beers":                    "\U0001f37b",
	"pizza":                    "\U0001f355",
	"cake":                     "\U0001f370",
	"sun_with_face":            "\U0001f31e",
	"sunny":                    "☀️",
	"cloud":                    "☁️",
	"umbrella":                 "☔",
	"snowflake":                "❄️",
	"see_no_evil":              "\U0001f648",
	"hear_no_evil":             "\U0001f649",
	"speak_no_evil":            "\U0001f64a",
	"skull":                    "\U0001f480",
	"ghost":                    "\U0001f47b",
	"robot_face":               "\U0001f916",
	"poop":                     "\U0001f4a9",
	"hankey":                   "\U0001f4a9",
	"thumbsup_all":             "\U0001f44d",
	"raising_hand":             "\U0001f64b",
	"facepalm":                 "\U0001f926",
	"shrug":                    "\U0001f937",
	"heavy_plus_sign":          "➕",
	"heavy_minus_sign":         "➖",
	"arrow_up":                 "⬆️",
	"arrow_down":               "⬇️",
	"arrow_right":              "➡️",
	"arrow_left":               "⬅️",
	"lock":                     "\U0001f512",
	"key":                      "\U0001f511",
	"bug":                      "\U0001f41b",
	"hammer_and_wrench":        "\U0001f6e0️",
	"gear":                     "⚙️",
	"link":                     "\U0001f517",
	"email":                    "\U0001f4e7",
	"phone":                    "☎️",
	"computer":                 "\U0001f4bb",
	"chart_with_upwards_trend": "\U0001f4c8",
	"moneybag":                 "\U0001f4b0",
	"trophy":                   "\U0001f3c6",
	"medal":                    "\U0001f3c5",
	"gift":                     "\U0001f381",
	"balloon":                  "\U0001f388",
}

// EmojiFor returns the Unicode form of a Slack emoji alias, or ":name:"
// when the alias is unknown.
func EmojiFor(name string) string {
	name = strings.Trim(name, ":")
	if base, _, found := strings.Cut(name, "::"); found {
		name = base
	}
	if emoji, ok := emojiMap[name]; ok {
		return emoji
	}
	return ":" + name + ":"
}

// Emojize replaces every known :alias: in text with its Unicode form and
// drops skin tone modifiers.
func Emojize(text string) string {
	if !strings.Contains(text, ":") {
		return text
	}
	text = skinToneRe.ReplaceAllString(text, ":")
	return shortcodeRe.ReplaceAllStringFunc(text, func(match string) string {
		if emoji, ok := emojiMap[match[1:len(match)-1]]; ok {
			return emoji
		}
		return match
	})
}
