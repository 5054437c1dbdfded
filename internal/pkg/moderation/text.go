package moderation

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// checkResult 单项检查结果
type checkResult struct {
	issues     []string
	confidence float64
}

func (c *checkResult) hit(issue string, confidence float64) {
	c.issues = append(c.issues, issue)
	c.confidence = math.Max(c.confidence, confidence)
}

func (c *checkResult) found() bool {
	return len(c.issues) > 0
}

// TextEngine 基于关键词与正则的文本审核引擎
type TextEngine struct {
	rules RuleProvider
}

func NewTextEngine(rules RuleProvider) *TextEngine {
	return &TextEngine{rules: rules}
}

// Evaluate 对单段文本执行全部检查。正常的"命中"通过返回值表达，不返回 error
func (e *TextEngine) Evaluate(text string, category Category, tc *TextContext) TextResult {
	rs := e.rules.Current()

	if strings.TrimSpace(text) == "" {
		return newTextResult(false, 0.0, nil, "Empty or invalid text")
	}

	original := strings.TrimSpace(text)
	lower := strings.ToLower(original)
	if utf8.RuneCountInString(lower) < rs.Text.MinLength {
		return newTextResult(false, rs.Text.ShortTextConfidence, nil, "Text too short for meaningful analysis")
	}

	checks := []checkResult{
		e.checkProfanity(rs, lower),
		e.checkSpam(rs, lower, original),
		e.checkPatterns(rs, GroupSuspicious, lower, "Suspicious content detected", rs.Weights.Suspicious),
		e.checkPatterns(rs, GroupAcademic, lower, "Potential academic dishonesty detected", rs.Weights.Academic),
		e.checkCategory(rs, lower, category, tc),
	}

	var issues []string
	confidence := 0.0
	for _, c := range checks {
		if !c.found() {
			continue
		}
		issues = append(issues, c.issues...)
		confidence = math.Max(confidence, c.confidence)
	}

	// 单个严重信号或多个轻微信号均可触发
	flagged := confidence > rs.Text.FlagConfidence || len(issues) >= rs.Text.FlagIssueCount
	message := "Content passed moderation"
	if flagged {
		message = "Content flagged for review"
	}
	return newTextResult(flagged, confidence, issues, message)
}

func (e *TextEngine) checkProfanity(rs *RuleSet, text string) checkResult {
	var res checkResult
	for _, re := range rs.Patterns(GroupProfanity) {
		if n := countMatches(re, text); n > 0 {
			res.hit(fmt.Sprintf("Inappropriate language detected: %d instances", n), rs.Weights.Profanity)
		}
	}
	return res
}

func (e *TextEngine) checkSpam(rs *RuleSet, lower, original string) checkResult {
	res := e.checkPatterns(rs, GroupSpam, lower, "Potential spam content detected", rs.Weights.Spam)

	words := strings.Fields(lower)
	if len(words) > rs.Text.RepetitionMinWords {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		if float64(len(unique)) < float64(len(words))*rs.Text.RepetitionRatio {
			res.hit("Repetitive content detected", rs.Weights.Repetition)
		}
	}

	// 大小写比例需基于原始文本计算
	upper := 0
	for _, r := range original {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if float64(upper) > float64(utf8.RuneCountInString(original))*rs.Text.UppercaseRatio {
		res.hit("Excessive capitalization", rs.Weights.Capitalization)
	}

	if strings.Contains(lower, "!!") || strings.Contains(lower, "??") {
		res.hit("Excessive punctuation", rs.Weights.Punctuation)
	}
	return res
}

func (e *TextEngine) checkPatterns(rs *RuleSet, group PatternGroup, text, issue string, confidence float64) checkResult {
	var res checkResult
	for _, re := range rs.Patterns(group) {
		if matches(re, text) {
			res.hit(issue, confidence)
		}
	}
	return res
}

func (e *TextEngine) checkCategory(rs *RuleSet, text string, category Category, tc *TextContext) checkResult {
	switch category {
	case CategorySell:
		res := e.checkPatterns(rs, GroupPrice, text, "Suspicious pricing detected", rs.Weights.Pricing)
		if tc != nil && tc.Price != nil && rs.Text.SuspiciousPrice > 0 && *tc.Price >= rs.Text.SuspiciousPrice {
			res.hit(fmt.Sprintf("Suspicious pricing detected: listed at %.2f", *tc.Price), rs.Weights.Pricing)
		}
		return res
	case CategoryRoommate:
		return e.checkPatterns(rs, GroupDiscriminatory, text, "Potentially discriminatory language", rs.Weights.Discriminatory)
	case CategoryCarpool:
		return e.checkPatterns(rs, GroupCarpoolSafety, text, "Safety concerns detected", rs.Weights.CarpoolSafety)
	}
	return checkResult{}
}

// matches 正则执行出错（超时等）视为未命中
func matches(re *regexp2.Regexp, text string) bool {
	ok, err := re.MatchString(text)
	return err == nil && ok
}

func countMatches(re *regexp2.Regexp, text string) int {
	n := 0
	m, err := re.FindStringMatch(text)
	for err == nil && m != nil {
		n++
		m, err = re.FindNextMatch(m)
	}
	return n
}
