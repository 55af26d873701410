package enrich

import (
	"strings"

	"github.com/feliven/qrpulse/internal/app/model"
	"github.com/mssola/useragent"
)

// DeviceInfo is the already-resolved device metadata attached to a scan
// event.
type DeviceInfo struct {
	DeviceType string
	DeviceName string
	Browser    string
	OS         string
}

// ParseUserAgent classifies a raw user-agent string. It is pure and never
// fails: anything it cannot classify comes back as an Unknown category.
func ParseUserAgent(raw string) DeviceInfo {
	if raw == "" {
		return DeviceInfo{
			DeviceType: model.DeviceUnknown,
			DeviceName: "Unknown Device",
			Browser:    "Unknown",
			OS:         "Unknown",
		}
	}

	ua := useragent.New(raw)
	lower := strings.ToLower(raw)

	info := DeviceInfo{
		DeviceType: deviceType(ua, lower),
		DeviceName: deviceName(lower),
	}

	if name, _ := ua.Browser(); name != "" {
		info.Browser = normalizeBrowser(name)
	} else {
		info.Browser = "Unknown"
	}

	if os := ua.OSInfo(); os.FullName != "" {
		info.OS = os.FullName
	} else if os := ua.OS(); os != "" {
		info.OS = os
	} else {
		info.OS = "Unknown"
	}

	return info
}

func deviceType(ua *useragent.UserAgent, lower string) string {
	switch {
	case ua.Bot():
		return model.DeviceUnknown
	case isTablet(lower):
		return model.DeviceTablet
	case ua.Mobile():
		return model.DeviceMobile
	default:
		return model.DeviceDesktop
	}
}

func isTablet(lower string) bool {
	return strings.Contains(lower, "ipad") ||
		strings.Contains(lower, "tablet") ||
		strings.Contains(lower, "kindle") ||
		// Android without "mobile" is a tablet by convention.
		(strings.Contains(lower, "android") && !strings.Contains(lower, "mobile"))
}

func deviceName(lower string) string {
	switch {
	case strings.Contains(lower, "iphone"):
		return "iPhone"
	case strings.Contains(lower, "ipad"):
		return "iPad"
	case strings.Contains(lower, "samsung"):
		return "Samsung Galaxy"
	case strings.Contains(lower, "pixel"):
		return "Google Pixel"
	case strings.Contains(lower, "oneplus"):
		return "OnePlus"
	case strings.Contains(lower, "xiaomi"), strings.Contains(lower, "redmi"):
		return "Xiaomi"
	case strings.Contains(lower, "android"):
		return "Android Device"
	case strings.Contains(lower, "windows"):
		return "Windows PC"
	case strings.Contains(lower, "macintosh"), strings.Contains(lower, "mac os"):
		return "Mac"
	case strings.Contains(lower, "linux"):
		return "Linux PC"
	default:
		return "Unknown Device"
	}
}

func normalizeBrowser(name string) string {
	switch strings.ToLower(name) {
	case "chrome", "google chrome", "crios":
		return "Chrome"
	case "firefox", "mozilla firefox":
		return "Firefox"
	case "safari", "mobile safari":
		return "Safari"
	case "edge", "microsoft edge":
		return "Edge"
	case "opera", "opera mini", "opr":
		return "Opera"
	case "samsung browser", "samsungbrowser":
		return "Samsung Browser"
	default:
		return name
	}
}
