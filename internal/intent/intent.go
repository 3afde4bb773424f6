// Package intent classifies questions to drive citation policy. The
// classification is purely lexical so it stays cheap enough for the hot
// path; there is no model call here.
package intent

import (
	"regexp"
	"strings"

	"ragchat/internal/domain"
)

// Messages longer than this are never treated as small talk.
const smallTalkMaxLen = 80

var smallTalkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(hai|halo|hello|hi|hey)\b`),
	regexp.MustCompile(`\bselamat\s+(pagi|siang|sore|malam)\b`),
	regexp.MustCompile(`\b(terima\s?kasi?h|makasih|thanks|thank\s+you)\b`),
	regexp.MustCompile(`\b(oke|okey|ok|sip|siap|noted)\b`),
	regexp.MustCompile(`\b(maaf|sorry)\b`),
}

// Interrogative or informational markers. A message containing any of these
// is a question, not small talk, no matter how it opens.
var questionMarkers = []string{
	"?",
	"apa", "bagaimana", "gimana", "mengapa", "kenapa", "dimana", "kapan", "berapa",
	"what", "how", "why", "where", "when", "which",
}

// Terms that mean the caller wants to see where an answer came from.
var sourceKeywords = []string{
	"sumber", "referensi", "tautan", "bukti", "lampiran", "dokumen", "lihat dokumen",
	"source", "reference", "citation", "link", "document", "proof",
}

// Classify labels a question. Rules apply in priority order: small talk
// first, then explicit source requests, then informational as the default.
func Classify(text string) domain.Intent {
	s := strings.ToLower(strings.TrimSpace(text))
	if isSmallTalk(s) {
		return domain.IntentSmallTalk
	}
	if wantsSources(s) {
		return domain.IntentSourceRequest
	}
	return domain.IntentInformational
}

func isSmallTalk(s string) bool {
	if s == "" || len(s) > smallTalkMaxLen {
		return false
	}
	for _, kw := range questionMarkers {
		if strings.Contains(s, kw) {
			return false
		}
	}
	for _, re := range smallTalkPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func wantsSources(s string) bool {
	if s == "" {
		return false
	}
	for _, kw := range sourceKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
