// Package judge wraps the external judgment services: quote extraction,
// accuracy checking, fix generation, and section rewriting. Each is a
// black-box call to an OpenAI-compatible chat endpoint with a strict-JSON
// contract; the internal reasoning of the model is not this package's
// concern. Callers treat failures as per-unit skips, never pipeline aborts.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/citeguard/internal/cache"
)

// ChatClient mirrors the subset of the OpenAI client we need, so any
// compatible backend (or a test fake) can stand in.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Quote is the extracted supporting quote for one claim.
type Quote struct {
	Quote    string `json:"quote"`
	Location string `json:"location"`
}

// Accuracy is the advisory verdict for one claim against its evidence.
type Accuracy struct {
	Verdict          string   `json:"verdict"`
	Score            float64  `json:"score"`
	Issues           []string `json:"issues"`
	SupportingQuotes []string `json:"supportingQuotes"`
	Difficulty       string   `json:"difficulty"`
}

// FlaggedCitation is the input view for fix generation: a claim joined with
// its best available evidence and verdict.
type FlaggedCitation struct {
	Footnote int    `json:"footnote"`
	Claim    string `json:"claim"`
	Evidence string `json:"evidence"`
	Verdict  string `json:"verdict"`
	URL      string `json:"url"`
}

// FixProposal is one string-replacement edit proposed by the model.
type FixProposal struct {
	Footnote    int    `json:"footnote"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Explanation string `json:"explanation"`
	FixType     string `json:"fixType"`
}

// FootnoteEvidence is the per-footnote evidence handed to a section rewrite,
// with the removability decision already made by the caller.
type FootnoteEvidence struct {
	Footnote  int    `json:"footnote"`
	Evidence  string `json:"evidence"`
	Removable bool   `json:"removable"`
}

// QuoteExtractor extracts a supporting quote for a claim from source text.
type QuoteExtractor interface {
	ExtractQuote(ctx context.Context, claim, sourceText string) (Quote, error)
}

// AccuracyChecker classifies a claim's factual support.
type AccuracyChecker interface {
	CheckAccuracy(ctx context.Context, claim, evidence string) (Accuracy, error)
}

// FixGenerator proposes targeted string-replacement fixes for flagged
// citations against the full page text.
type FixGenerator interface {
	GenerateFixes(ctx context.Context, flagged []FlaggedCitation, pageText string) ([]FixProposal, error)
}

// SectionRewriter rewrites a whole section given per-footnote evidence.
type SectionRewriter interface {
	RewriteSection(ctx context.Context, sectionText string, evidence []FootnoteEvidence) (string, error)
}

// ErrNoResponse marks an empty or unparseable model response. The affected
// unit is skipped for the current stage only.
var ErrNoResponse = errors.New("judgment service returned no usable response")

// Service implements all four judgment calls against one ChatClient.
type Service struct {
	Client ChatClient
	Model  string
	// Cache, when set, short-circuits identical calls.
	Cache *cache.ResponseCache
}

func (s *Service) ExtractQuote(ctx context.Context, claim, sourceText string) (Quote, error) {
	sys := "You extract verbatim supporting quotes. Respond with strict JSON only: " +
		`{"quote":string,"location":string}. The quote must be copied exactly from the source; ` +
		`location names the section or paragraph. If no support exists, return an empty quote.`
	user := fmt.Sprintf("Claim:\n%s\n\nSource text:\n%s", claim, sourceText)
	var q Quote
	if err := s.chatJSON(ctx, sys, user, &q); err != nil {
		return Quote{}, err
	}
	return q, nil
}

func (s *Service) CheckAccuracy(ctx context.Context, claim, evidence string) (Accuracy, error) {
	sys := "You are a citation accuracy checker. Respond with strict JSON only: " +
		`{"verdict":"accurate|minor_issues|inaccurate|unsupported|not_verifiable",` +
		`"score":number,"issues":string[],"supportingQuotes":string[],"difficulty":"easy|medium|hard"}. ` +
		"Score is 0-1 confidence that the evidence supports the claim. Verdicts are advisory signals, not guarantees."
	user := fmt.Sprintf("Claim:\n%s\n\nEvidence:\n%s", claim, evidence)
	var a Accuracy
	if err := s.chatJSON(ctx, sys, user, &a); err != nil {
		return Accuracy{}, err
	}
	a.Verdict = normalizeVerdict(a.Verdict)
	if a.Verdict == "" {
		return Accuracy{}, fmt.Errorf("%w: unknown verdict", ErrNoResponse)
	}
	return a, nil
}

func (s *Service) GenerateFixes(ctx context.Context, flagged []FlaggedCitation, pageText string) ([]FixProposal, error) {
	sys := "You repair inaccurate citations in markdown. Respond with strict JSON only: " +
		`{"fixes":[{"footnote":int,"original":string,"replacement":string,"explanation":string,"fixType":string}]}. ` +
		"Each original must be an exact substring of the page text, minimal in scope, and must keep the [^N] marker. " +
		"Never alter embedded component markers. Return an empty list when nothing can be fixed safely."
	payload, err := json.Marshal(flagged)
	if err != nil {
		return nil, fmt.Errorf("marshal flagged citations: %w", err)
	}
	user := fmt.Sprintf("Flagged citations:\n%s\n\nPage text:\n%s", payload, pageText)
	var out struct {
		Fixes []FixProposal `json:"fixes"`
	}
	if err := s.chatJSON(ctx, sys, user, &out); err != nil {
		return nil, err
	}
	return out.Fixes, nil
}

func (s *Service) RewriteSection(ctx context.Context, sectionText string, evidence []FootnoteEvidence) (string, error) {
	sys := "You rewrite one markdown section to remove unsupported claims. Respond with strict JSON only: " +
		`{"section":string}. Keep every footnote reference whose evidence is marked removable=false. ` +
		"Keep all embedded component markers byte-for-byte. Keep the section heading. " +
		"Remove or soften only the claims whose footnotes are marked removable."
	payload, err := json.Marshal(evidence)
	if err != nil {
		return "", fmt.Errorf("marshal evidence: %w", err)
	}
	user := fmt.Sprintf("Evidence per footnote:\n%s\n\nSection:\n%s", payload, sectionText)
	var out struct {
		Section string `json:"section"`
	}
	if err := s.chatJSON(ctx, sys, user, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Section) == "" {
		return "", ErrNoResponse
	}
	return out.Section, nil
}

// chatJSON runs one cached, temperature-0 chat call and unmarshals the
// JSON body of the first choice into out.
func (s *Service) chatJSON(ctx context.Context, sys, user string, out any) error {
	if s.Client == nil || strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("%w: no client configured", ErrNoResponse)
	}
	key := cache.KeyFrom(s.Model, sys+"\n\n"+user)
	if s.Cache != nil {
		if raw, ok, _ := s.Cache.Get(ctx, key); ok {
			if json.Unmarshal(raw, out) == nil {
				return nil
			}
		}
	}
	resp, err := s.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sys},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.0,
		N:           1,
	})
	if err != nil {
		return fmt.Errorf("judgment call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ErrNoResponse
	}
	raw := stripCodeFence(strings.TrimSpace(resp.Choices[0].Message.Content))
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	if s.Cache != nil {
		_ = s.Cache.Save(ctx, key, []byte(raw))
	}
	return nil
}

// stripCodeFence unwraps a ```json ... ``` block some models emit despite
// the strict-JSON instruction.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func normalizeVerdict(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.ReplaceAll(v, " ", "_")
	v = strings.ReplaceAll(v, "-", "_")
	switch v {
	case "accurate", "minor_issues", "inaccurate", "unsupported", "not_verifiable":
		return v
	}
	return ""
}
