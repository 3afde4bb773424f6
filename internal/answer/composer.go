// Package answer assembles the final response: grounding prompt, one
// generation call, and the citation policy.
package answer

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/access"
	"ragchat/internal/domain"
)

// NoRelevantInfo is returned verbatim when retrieval produced nothing; the
// generator is never invoked in that case.
const NoRelevantInfo = "I couldn't find any relevant information to answer your question."

// CitationHeader is the delimiter line separating the answer body from the
// citation list. Clients split on it mechanically.
const CitationHeader = "Sumber:"

// Request carries everything the composer needs for one answer.
type Request struct {
	Question         string
	Candidates       []domain.Candidate
	History          []domain.Turn
	Intent           domain.Intent
	RequestedSources bool
	Role             access.Role
}

// Composer produces answers through a generation collaborator.
type Composer struct {
	generator domain.Generator
}

// New creates a composer over the given generator.
func New(generator domain.Generator) *Composer {
	return &Composer{generator: generator}
}

// Compose builds the grounding prompt, invokes the generator once, and
// applies the citation policy. Citations appear when the caller asked for
// them or the question itself demands sources; small talk never carries
// citations, and the source-keyword signal only ever adds citations, never
// suppresses them.
func (c *Composer) Compose(ctx context.Context, req Request) (domain.AnswerResult, error) {
	result := domain.AnswerResult{
		Intent:     req.Intent,
		Candidates: len(req.Candidates),
	}
	if len(req.Candidates) == 0 {
		result.Answer = NoRelevantInfo
		return result, nil
	}

	text, err := c.generator.Generate(ctx, buildPrompt(req))
	if err != nil {
		return domain.AnswerResult{}, &domain.GenerationError{Err: err}
	}
	result.Answer = text

	include := (req.RequestedSources || req.Intent == domain.IntentSourceRequest) &&
		req.Intent != domain.IntentSmallTalk
	if include {
		if citations := dedupeLinks(req.Candidates); len(citations) > 0 {
			result.Citations = citations
			result.Answer += citationTrailer(citations)
		}
	}
	return result, nil
}

func buildPrompt(req Request) domain.Prompt {
	var b strings.Builder
	b.WriteString("You are an assistant answering questions from a document knowledge base.\n")
	b.WriteString("Answer using ONLY the context below, which can include text, tables, and image descriptions. ")
	b.WriteString("If the context does not contain the answer, say you do not have enough information. ")
	b.WriteString("Never use outside knowledge.\n")
	b.WriteString(toneFor(req.Role))
	b.WriteString("\nContext:\n\n")
	for _, cand := range req.Candidates {
		fmt.Fprintf(&b, "Source: %s\nContent: %s\n\n", cand.DocumentName, cand.Body)
	}

	messages := make([]domain.Turn, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, domain.Turn{Role: domain.TurnHuman, Content: req.Question})
	return domain.Prompt{System: b.String(), Messages: messages}
}

func toneFor(r access.Role) string {
	switch r {
	case access.RoleAdmin:
		return "The caller is an administrator; be technical and terse.\n"
	case access.RoleLecturer:
		return "The caller is a lecturer; be professional and precise.\n"
	default:
		return "Explain step by step in simple terms.\n"
	}
}

// dedupeLinks collects candidate source links, first-seen order, no
// duplicates, empty links skipped.
func dedupeLinks(candidates []domain.Candidate) []string {
	var links []string
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c.SourceLink == "" {
			continue
		}
		if _, ok := seen[c.SourceLink]; ok {
			continue
		}
		seen[c.SourceLink] = struct{}{}
		links = append(links, c.SourceLink)
	}
	return links
}

func citationTrailer(links []string) string {
	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(CitationHeader)
	for _, link := range links {
		b.WriteString("\n- ")
		b.WriteString(link)
	}
	return b.String()
}

// SplitCitations separates an answer's body from its citation trailer.
// Answers without a trailer come back unchanged with no links.
func SplitCitations(text string) (body string, links []string) {
	marker := "\n\n" + CitationHeader + "\n"
	idx := strings.LastIndex(text, marker)
	if idx < 0 {
		return text, nil
	}
	body = text[:idx]
	for _, line := range strings.Split(text[idx+len(marker):], "\n") {
		if link, ok := strings.CutPrefix(line, "- "); ok {
			links = append(links, link)
		}
	}
	return body, links
}
