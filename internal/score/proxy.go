package score

import (
	"regexp"
	"strings"
)

// ProxyMarker describes a recognized third-party-processor prefix that
// obscures the true merchant in a transaction narrative.
type ProxyMarker struct {
	re   *regexp.Regexp
	Name string
}

// proxyMarkers is the lexicon of payment intermediaries whose narrative
// prefixes contaminate merchant text. Each regex is anchored to the start of
// the narrative, where acquirers inject their tokens.
var proxyMarkers = compileMarkers([]struct {
	name  string
	regex string
}{
	{"square", `^SQ\s*\*`},
	{"toast", `^TST\*?\s`},
	{"paypal", `^(PAYPAL|PP)\s*\*`},
	{"stripe", `^STRIPE\s*[*:]`},
	{"cash-app", `^CASH\s*APP\s*\*`},
	{"venmo", `^VENMO\s*[* ]`},
	{"zelle", `^ZELLE\s`},
	{"clover", `^CLV\*\s*`},
	{"instacart", `^IC\*\s*`},
	{"doordash", `^DD\s*\*`},
	{"grubhub", `^GH\s*\*`},
	{"uber-eats", `^UBER\s+EATS\s*\*?`},
	{"apple-pay", `^APLPAY\s`},
	{"google-pay", `^GOOGLE\s*\*`},
	{"amazon-marketplace", `^AMZN\s*MKTP\s*`},
	{"wallet", `^WLT\*\s*`},
})

func compileMarkers(specs []struct {
	name  string
	regex string
}) []ProxyMarker {
	markers := make([]ProxyMarker, 0, len(specs))
	for _, spec := range specs {
		markers = append(markers, ProxyMarker{
			Name: spec.name,
			re:   regexp.MustCompile(`(?i)` + spec.regex),
		})
	}
	return markers
}

// FindProxyMarker reports the first recognized processor marker in the
// narrative, if any.
func FindProxyMarker(narrative string) (ProxyMarker, bool) {
	trimmed := strings.TrimSpace(narrative)
	for _, m := range proxyMarkers {
		if m.re.MatchString(trimmed) {
			return m, true
		}
	}
	return ProxyMarker{}, false
}

// StripProxyMarker removes a recognized marker prefix and returns the
// residual merchant text. When no marker is present the narrative is
// returned unchanged and found is false.
func StripProxyMarker(narrative string) (residual string, marker ProxyMarker, found bool) {
	trimmed := strings.TrimSpace(narrative)
	for _, m := range proxyMarkers {
		if loc := m.re.FindStringIndex(trimmed); loc != nil {
			return strings.TrimSpace(trimmed[loc[1]:]), m, true
		}
	}
	return trimmed, ProxyMarker{}, false
}
