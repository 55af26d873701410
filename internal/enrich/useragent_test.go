package enrich

import (
	"testing"

	"github.com/feliven/qrpulse/internal/app/model"
)

func TestParseUserAgent(t *testing.T) {
	cases := []struct {
		name       string
		ua         string
		deviceType string
		deviceName string
	}{
		{
			name:       "iphone safari",
			ua:         "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			deviceType: model.DeviceMobile,
			deviceName: "iPhone",
		},
		{
			name:       "android phone chrome",
			ua:         "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			deviceType: model.DeviceMobile,
			deviceName: "Google Pixel",
		},
		{
			name:       "ipad",
			ua:         "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			deviceType: model.DeviceTablet,
			deviceName: "iPad",
		},
		{
			name:       "android tablet",
			ua:         "Mozilla/5.0 (Linux; Android 13; SM-X910) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			deviceType: model.DeviceTablet,
			deviceName: "Android Device",
		},
		{
			name:       "windows desktop",
			ua:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			deviceType: model.DeviceDesktop,
			deviceName: "Windows PC",
		},
		{
			name:       "mac desktop",
			ua:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
			deviceType: model.DeviceDesktop,
			deviceName: "Mac",
		},
		{
			name:       "bot",
			ua:         "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			deviceType: model.DeviceUnknown,
			deviceName: "Unknown Device",
		},
		{
			name:       "empty",
			ua:         "",
			deviceType: model.DeviceUnknown,
			deviceName: "Unknown Device",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := ParseUserAgent(tc.ua)
			if info.DeviceType != tc.deviceType {
				t.Fatalf("device type: expected %s, got %s", tc.deviceType, info.DeviceType)
			}
			if info.DeviceName != tc.deviceName {
				t.Fatalf("device name: expected %s, got %s", tc.deviceName, info.DeviceName)
			}
		})
	}
}

func TestParseUserAgent_BrowserNormalization(t *testing.T) {
	info := ParseUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	if info.Browser != "Chrome" {
		t.Fatalf("expected Chrome, got %s", info.Browser)
	}

	info = ParseUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0")
	if info.Browser != "Firefox" {
		t.Fatalf("expected Firefox, got %s", info.Browser)
	}
}

func TestParseUserAgent_NeverEmpty(t *testing.T) {
	for _, ua := range []string{"", "garbage", "Mozilla/5.0"} {
		info := ParseUserAgent(ua)
		if info.DeviceType == "" || info.DeviceName == "" || info.Browser == "" || info.OS == "" {
			t.Fatalf("empty field for %q: %+v", ua, info)
		}
	}
}
