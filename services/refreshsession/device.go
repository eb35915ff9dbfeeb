package refreshsession

import "github.com/mileusna/useragent"

// DeviceLabel renders a short "Browser on OS" label for session listings.
func DeviceLabel(userAgent string) string {
	if userAgent == "" {
		return "Unknown device"
	}

	ua := useragent.Parse(userAgent)
	if ua.Bot {
		return "Bot"
	}

	browser := ua.Name
	if browser == "" {
		browser = "Unknown browser"
	}
	os := ua.OS
	if os == "" {
		os = "unknown OS"
	}

	label := browser + " on " + os
	switch {
	case ua.Tablet:
		label += " (tablet)"
	case ua.Mobile:
		label += " (mobile)"
	}
	return label
}
