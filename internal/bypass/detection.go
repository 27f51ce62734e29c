// Package bypass recognizes responses where an upstream refused to serve
// content: rate limits, captcha interstitials and bot-protection blocks.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of an HTTP exchange detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a response is a block and names its source.
type Detector func(res Response) (detected bool, source string)

// DefaultDetectors returns the standard list of block detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectRateLimit,
		detectGoogleSorry,
		detectRecaptcha,
		detectCloudflare,
	}
}

// Analyze runs res through detectors and returns the first match.
func Analyze(res Response, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return true, source
		}
	}
	return false, ""
}

// detectRateLimit flags HTTP 429 from any upstream.
func detectRateLimit(res Response) (bool, string) {
	if res.StatusCode == http.StatusTooManyRequests {
		return true, "RateLimit"
	}
	return false, ""
}

// detectGoogleSorry matches Google's "unusual traffic" interstitial, served
// either directly or after a redirect to /sorry/.
func detectGoogleSorry(res Response) (bool, string) {
	if bytes.Contains(res.Body, []byte("Our systems have detected unusual traffic")) ||
		bytes.Contains(res.Body, []byte("/sorry/index")) {
		return true, "GoogleSorry"
	}
	return false, ""
}

// detectRecaptcha matches pages that only render a captcha challenge.
func detectRecaptcha(res Response) (bool, string) {
	if res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusServiceUnavailable || res.StatusCode == http.StatusOK {
		if bytes.Contains(res.Body, []byte("g-recaptcha")) || bytes.Contains(res.Body, []byte("www.google.com/recaptcha/api.js")) {
			return true, "reCAPTCHA"
		}
	}
	return false, ""
}

// detectCloudflare looks for Cloudflare challenge/block signatures, which
// WordPress hosts commonly sit behind.
func detectCloudflare(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	if bytes.Contains(res.Body, []byte("cf-browser-verification")) ||
		bytes.Contains(res.Body, []byte("cf-turnstile")) ||
		bytes.Contains(res.Body, []byte("Attention Required! | Cloudflare")) {
		return true, "Cloudflare"
	}
	return false, ""
}
