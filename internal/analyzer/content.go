package analyzer

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// contentSignals are the page-derived indicators blended into the risk score.
type contentSignals struct {
	Title              string
	HasPasswordField   bool
	AsksPersonalInfo   bool
	UrgencyKeywordHits []string
	Unreachable        bool
}

var personalInfoMarkers = []string{
	"id card",
	"citizen id",
	"national id",
	"social security",
	"account number",
	"card number",
	"cvv",
	"date of birth",
	"mother's maiden",
	"เลขบัตรประชาชน",
	"เลขบัญชี",
	"วันเกิด",
}

var contentUrgencyKeywords = []string{
	"urgent",
	"immediately",
	"verify now",
	"act now",
	"suspended",
	"limited time",
	"you have won",
	"claim your",
	"free gift",
	"ด่วนที่สุด",
	"รับรางวัล",
	"หมดเขต",
}

// inspectContent parses the fetched page for credential-harvesting and
// urgency indicators. A nil body yields only the unreachable signal.
func inspectContent(body string) *contentSignals {
	signals := &contentSignals{UrgencyKeywordHits: []string{}}
	if body == "" {
		return signals
	}

	lower := strings.ToLower(body)

	for _, marker := range personalInfoMarkers {
		if strings.Contains(lower, marker) {
			signals.AsksPersonalInfo = true
			break
		}
	}
	for _, kw := range contentUrgencyKeywords {
		if strings.Contains(lower, kw) {
			signals.UrgencyKeywordHits = append(signals.UrgencyKeywordHits, kw)
		}
	}

	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		// Malformed markup still yielded the text signals above.
		return signals
	}
	walkNodes(doc, signals)
	return signals
}

func walkNodes(n *html.Node, signals *contentSignals) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "input":
			for _, attr := range n.Attr {
				if attr.Key == "type" && strings.EqualFold(attr.Val, "password") {
					signals.HasPasswordField = true
				}
			}
		case "title":
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode && signals.Title == "" {
				signals.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, signals)
	}
}

// excerpt returns the leading portion of the body text for the classifier.
// The cut lands on a rune boundary so multibyte text is never split.
func excerpt(body string, limit int) string {
	if len(body) <= limit {
		return body
	}
	for limit > 0 && !utf8.RuneStart(body[limit]) {
		limit--
	}
	return body[:limit]
}
