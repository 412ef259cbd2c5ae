package producer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	stubBrandLine    = regexp.MustCompile(`(?m)^Brand: (.+)$`)
	stubSectorLine   = regexp.MustCompile(`(?m)^Sector: (.+)$`)
	stubCategoryLine = regexp.MustCompile(`(?m)^- (\d+): .*, (.+)$`)
	stubCitedLine    = regexp.MustCompile(`(?m)^Cited transactions: (.+)$`)
	// The feedback body sits between the header and the cited/legend
	// sections; keyword matching must not see the legend text.
	stubFeedbackBody = regexp.MustCompile(`(?s)Feedback text:\n(.*?)\n+(?:Cited transactions:|Issue categories:)`)
)

// Stub is a deterministic in-process provider for tests and offline runs.
// It derives an anchored pattern from the brand name and selects the
// category ids whose sector matches the brand's. Responses can be overridden
// per brand and errors injected; all calls are counted.
type Stub struct {
	mu            sync.Mutex
	ruleOverrides map[string]RuleResponse
	nextErr       error
	ruleCalls     map[string]int
	feedbackCalls int
	totalCalls    int
}

// NewStub creates a stub provider.
func NewStub() *Stub {
	return &Stub{
		ruleOverrides: make(map[string]RuleResponse),
		ruleCalls:     make(map[string]int),
	}
}

// SetRuleResponse overrides the response for one brand name.
func (s *Stub) SetRuleResponse(brand string, resp RuleResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ruleOverrides[brand] = resp
}

// FailNext makes the next call return err.
func (s *Stub) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextErr = err
}

// Calls reports the total number of provider calls.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCalls
}

// RuleCallsFor reports how many rule proposals were requested for the brand.
func (s *Stub) RuleCallsFor(brand string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ruleCalls[brand]
}

// FeedbackCalls reports how many feedback interpretations were requested.
func (s *Stub) FeedbackCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedbackCalls
}

// ProposeRule derives a deterministic rule from the prompt.
func (s *Stub) ProposeRule(ctx context.Context, prompt string) (RuleResponse, error) {
	if err := ctx.Err(); err != nil {
		return RuleResponse{}, err
	}

	brand := firstGroup(stubBrandLine, prompt)
	if brand == "" {
		return RuleResponse{}, fmt.Errorf("stub: prompt carries no brand line")
	}

	s.mu.Lock()
	s.totalCalls++
	s.ruleCalls[brand]++
	override, hasOverride := s.ruleOverrides[brand]
	err := s.nextErr
	s.nextErr = nil
	s.mu.Unlock()

	if err != nil {
		return RuleResponse{}, err
	}
	if hasOverride {
		return override, nil
	}

	sector := firstGroup(stubSectorLine, prompt)
	var ids, sectorIDs []int64
	for _, m := range stubCategoryLine.FindAllStringSubmatch(prompt, -1) {
		id, convErr := strconv.ParseInt(m[1], 10, 64)
		if convErr != nil {
			continue
		}
		ids = append(ids, id)
		if strings.EqualFold(strings.TrimSpace(m[2]), sector) {
			sectorIDs = append(sectorIDs, id)
		}
	}
	if len(sectorIDs) > 0 {
		ids = sectorIDs
	}

	pattern := "^" + strings.Join(strings.Fields(strings.ToUpper(brand)), `\s+`)

	return RuleResponse{
		Pattern:     pattern,
		CategoryIDs: ids,
		Confidence:  0.9,
		Rationale:   "stub: anchored brand name with sector categories",
	}, nil
}

// InterpretFeedback maps feedback phrasing to an issue category by keyword.
func (s *Stub) InterpretFeedback(ctx context.Context, prompt string) (FeedbackResponse, error) {
	if err := ctx.Err(); err != nil {
		return FeedbackResponse{}, err
	}

	s.mu.Lock()
	s.totalCalls++
	s.feedbackCalls++
	err := s.nextErr
	s.nextErr = nil
	s.mu.Unlock()

	if err != nil {
		return FeedbackResponse{}, err
	}

	body := firstGroup(stubFeedbackBody, prompt)
	if body == "" {
		body = prompt
	}
	lower := strings.ToLower(body)

	issue := "pattern-too-broad"
	switch {
	case strings.Contains(lower, "missing") || strings.Contains(lower, "too narrow") || strings.Contains(lower, "misses"):
		issue = "pattern-too-narrow"
	case strings.Contains(lower, "category") || strings.Contains(lower, "sector"):
		issue = "category-mismatch"
	case strings.Contains(lower, "proxy") || strings.Contains(lower, "processor") || strings.Contains(lower, "sq *"):
		issue = "proxy-text-contamination"
	}

	var cited []string
	if line := firstGroup(stubCitedLine, prompt); line != "" {
		for _, raw := range strings.Split(line, ",") {
			cited = append(cited, strings.TrimSpace(raw))
		}
	}

	return FeedbackResponse{
		IssueCategory:       issue,
		Summary:             "stub interpretation of submitted feedback",
		CitedTransactionIDs: cited,
		Confidence:          0.9,
	}, nil
}

func firstGroup(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
