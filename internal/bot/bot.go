// Package bot classifies HTTP user agents found in access logs.
package bot

import "strings"

// Traffic classes.
const (
	Human   = "human"
	Bot     = "bot"
	Unknown = "unknown"
)

// Substrings that mark automated clients.
var signatures = []string{
	"bot", "crawl", "spider", "slurp",
	"facebookexternalhit", "go-http-client", "curl", "wget",
	"python-requests", "python-urllib", "scrapy", "libwww-perl",
	"headlesschrome", "phantomjs", "selenium", "nmap", "masscan",
	"zgrab", "+http",
}

// Named crawlers reported on their own in agent summaries.
var namedBots = []string{
	"googlebot", "bingbot", "yandexbot", "baiduspider", "duckduckbot",
	"ahrefsbot", "semrushbot", "mj12bot", "petalbot", "applebot",
	"facebookexternalhit", "twitterbot", "linkedinbot", "gptbot",
}

// match is one family rule: the first rule whose any-list hits and whose
// none-list misses wins.
type match struct {
	name string
	any  []string
	none []string
}

// Edge and Opera carry "chrome/", Chrome carries "safari/".
var browsers = []match{
	{name: "Edge", any: []string{"edg/", "edge/"}},
	{name: "Opera", any: []string{"opr/", "opera/"}},
	{name: "Chrome", any: []string{"chrome/", "chromium/", "crios/"}},
	{name: "Firefox", any: []string{"firefox/", "fxios/"}},
	{name: "Safari", any: []string{"safari/"}},
	{name: "Internet Explorer", any: []string{"msie ", "trident/"}},
}

// iOS before macOS, ChromeOS before Linux.
var systems = []match{
	{name: "iOS", any: []string{"iphone", "ipad", "ipod"}},
	{name: "Android", any: []string{"android"}},
	{name: "ChromeOS", any: []string{"cros "}},
	{name: "Windows", any: []string{"windows"}},
	{name: "macOS", any: []string{"macintosh", "mac os"}},
	{name: "Linux", any: []string{"linux", "x11"}},
}

func blank(ua string) bool {
	ua = strings.TrimSpace(ua)
	return ua == "" || ua == "-"
}

// IsBot reports whether the agent looks automated. A bare "Mozilla/5.0"
// with nothing after it counts as automated.
func IsBot(ua string) bool {
	if blank(ua) {
		return false
	}
	if strings.TrimSpace(ua) == "Mozilla/5.0" {
		return true
	}
	return containsAny(strings.ToLower(ua), signatures)
}

// Classify returns Human, Bot or Unknown for a user agent.
func Classify(ua string) string {
	switch {
	case blank(ua):
		return Unknown
	case IsBot(ua):
		return Bot
	default:
		return Human
	}
}

// Browser returns the browser family, "Bot", "Unknown" or "Other".
func Browser(ua string) string {
	switch Classify(ua) {
	case Unknown:
		return "Unknown"
	case Bot:
		return "Bot"
	}
	return first(browsers, strings.ToLower(ua))
}

// OS returns the operating system family or "Other".
func OS(ua string) string {
	if blank(ua) {
		return "Other"
	}
	return first(systems, strings.ToLower(ua))
}

// Agent returns a display label for grouping: a named crawler, "bot", a
// browser family, or "unknown".
func Agent(ua string) string {
	if blank(ua) {
		return Unknown
	}
	lower := strings.ToLower(ua)
	for _, name := range namedBots {
		if strings.Contains(lower, name) {
			return name
		}
	}
	if IsBot(ua) {
		return Bot
	}
	if b := first(browsers, lower); b != "Other" {
		return b
	}
	return Unknown
}

func first(rules []match, lower string) string {
	for _, r := range rules {
		if containsAny(lower, r.any) && !containsAny(lower, r.none) {
			return r.name
		}
	}
	return "Other"
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
