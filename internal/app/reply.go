package app

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"reviewpulse/internal/domain"
)

const DefaultReplyMaxLen = 500

// SuggestReply drafts a templated reply for a scored review. The result is a
// draft only: once a user edits the stored reply, re-scoring must not
// overwrite it (enforced at the storage layer via the reply_edited flag).
func SuggestReply(companyName, sentiment string, keywords []string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultReplyMaxLen
	}
	topic := ""
	if len(keywords) > 0 {
		topic = keywords[0]
	}

	var reply string
	switch sentiment {
	case domain.SentimentNegative:
		if topic != "" {
			reply = fmt.Sprintf(
				"We're sorry about your experience at %s, and we take your feedback about %s seriously. Please contact our support team so we can make it right.",
				companyName, topic)
		} else {
			reply = fmt.Sprintf(
				"We're sorry about your experience at %s. Please contact our support team so we can make it right.",
				companyName)
		}
	case domain.SentimentPositive:
		if topic != "" {
			reply = fmt.Sprintf(
				"Thank you for your kind words about %s! We're glad the %s stood out, and we truly appreciate your feedback.",
				companyName, topic)
		} else {
			reply = fmt.Sprintf(
				"Thank you for your kind words about %s! We truly appreciate your feedback.",
				companyName)
		}
	default:
		reply = fmt.Sprintf(
			"Thanks for sharing your thoughts about %s. We value your feedback and will keep improving.",
			companyName)
	}
	return truncateAtWord(reply, maxLen)
}

// truncateAtWord cuts s to at most max bytes without splitting a word or a
// multibyte rune.
func truncateAtWord(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if i := strings.LastIndexByte(s[:max], ' '); i > 0 {
		return strings.TrimRight(s[:i], " ,.;:!?")
	}
	// no word boundary in range: back the cut up to a rune boundary
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return strings.TrimRight(s[:max], " ,.;:!?")
}
