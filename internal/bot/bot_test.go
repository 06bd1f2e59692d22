package bot

import "testing"

const (
	chromeMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"
	chromeAndroid = "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Mobile Safari/537.36"
	edgeWindows   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
	firefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	safariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	chromebook    = "Mozilla/5.0 (X11; CrOS x86_64 14541.0.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	googlebot     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	ahrefs        = "Mozilla/5.0 (compatible; AhrefsBot/7.0; +http://ahrefs.com/robot/)"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"chrome desktop", chromeMac, Human},
		{"chrome mobile", chromeAndroid, Human},
		{"old opera", "Opera/8.01 (Macintosh; U; PPC Mac OS; en)", Human},
		{"googlebot", googlebot, Bot},
		{"ahrefs", ahrefs, Bot},
		{"go client", "Go-http-client/1.1", Bot},
		{"curl", "curl/7.68.0", Bot},
		{"bare mozilla", "Mozilla/5.0", Bot},
		{"dash", "-", Unknown},
		{"empty", "", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.ua); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.ua, got, tt.want)
			}
		})
	}
}

func TestBrowser(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{chromeMac, "Chrome"},
		{edgeWindows, "Edge"},
		{firefoxLinux, "Firefox"},
		{safariIPhone, "Safari"},
		{"Mozilla/5.0 (Windows NT 10.0) AppleWebKit/537.36 Chrome/120.0 Safari/537.36 OPR/106.0", "Opera"},
		{"Mozilla/5.0 (compatible; MSIE 10.0; Windows NT 6.1; Trident/6.0)", "Internet Explorer"},
		{googlebot, "Bot"},
		{"-", "Unknown"},
		{"Lynx/2.8.9rel.1 libwww-FM/2.14", "Other"},
	}

	for _, tt := range tests {
		if got := Browser(tt.ua); got != tt.want {
			t.Errorf("Browser(%q) = %v, want %v", tt.ua, got, tt.want)
		}
	}
}

func TestOS(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{chromeMac, "macOS"},
		{chromeAndroid, "Android"},
		{edgeWindows, "Windows"},
		{firefoxLinux, "Linux"},
		{safariIPhone, "iOS"},
		{chromebook, "ChromeOS"},
		{"Mozilla/5.0 (Windows NT 10.0; Microsoft Edge)", "Windows"},
		{"", "Other"},
		{"curl/8.0", "Other"},
	}

	for _, tt := range tests {
		if got := OS(tt.ua); got != tt.want {
			t.Errorf("OS(%q) = %v, want %v", tt.ua, got, tt.want)
		}
	}
}

func TestAgent(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{googlebot, "googlebot"},
		{ahrefs, "ahrefsbot"},
		{"python-requests/2.31", "bot"},
		{edgeWindows, "Edge"},
		{firefoxLinux, "Firefox"},
		{"Lynx/2.8.9rel.1", "unknown"},
		{"-", "unknown"},
	}

	for _, tt := range tests {
		if got := Agent(tt.ua); got != tt.want {
			t.Errorf("Agent(%q) = %v, want %v", tt.ua, got, tt.want)
		}
	}
}
