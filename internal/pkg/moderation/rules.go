package moderation

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlclark/regexp2"
)

// patternMatchTimeout 单条正则的最长执行时间，回溯正则需要上限
const patternMatchTimeout = 200 * time.Millisecond

// PatternGroup 规则表分组名
type PatternGroup string

const (
	GroupProfanity      PatternGroup = "profanity"
	GroupSpam           PatternGroup = "spam"
	GroupSuspicious     PatternGroup = "suspicious"
	GroupAcademic       PatternGroup = "academic"
	GroupPrice          PatternGroup = "price"
	GroupDiscriminatory PatternGroup = "discriminatory"
	GroupCarpoolSafety  PatternGroup = "carpool_safety"
)

// Valid 是否为已知分组
func (g PatternGroup) Valid() bool {
	switch g {
	case GroupProfanity, GroupSpam, GroupSuspicious, GroupAcademic, GroupPrice, GroupDiscriminatory, GroupCarpoolSafety:
		return true
	}
	return false
}

// Weights 各项检查命中时给出的置信度
type Weights struct {
	Profanity      float64 `mapstructure:"profanity" json:"profanity"`
	Spam           float64 `mapstructure:"spam" json:"spam"`
	Repetition     float64 `mapstructure:"repetition" json:"repetition"`
	Capitalization float64 `mapstructure:"capitalization" json:"capitalization"`
	Punctuation    float64 `mapstructure:"punctuation" json:"punctuation"`
	Suspicious     float64 `mapstructure:"suspicious" json:"suspicious"`
	Academic       float64 `mapstructure:"academic" json:"academic"`
	Pricing        float64 `mapstructure:"pricing" json:"pricing"`
	Discriminatory float64 `mapstructure:"discriminatory" json:"discriminatory"`
	CarpoolSafety  float64 `mapstructure:"carpool_safety" json:"carpool_safety"`
}

// TextThresholds 文本引擎阈值
type TextThresholds struct {
	MinLength           int     `mapstructure:"min_length" json:"min_length"`
	ShortTextConfidence float64 `mapstructure:"short_text_confidence" json:"short_text_confidence"`
	FlagConfidence      float64 `mapstructure:"flag_confidence" json:"flag_confidence"`
	FlagIssueCount      int     `mapstructure:"flag_issue_count" json:"flag_issue_count"`
	RepetitionMinWords  int     `mapstructure:"repetition_min_words" json:"repetition_min_words"`
	RepetitionRatio     float64 `mapstructure:"repetition_ratio" json:"repetition_ratio"`
	UppercaseRatio      float64 `mapstructure:"uppercase_ratio" json:"uppercase_ratio"`
	SuspiciousPrice     float64 `mapstructure:"suspicious_price" json:"suspicious_price"`
}

// ImageThresholds 图片启发式阈值
type ImageThresholds struct {
	MaxBytes             int          `mapstructure:"max_bytes" json:"max_bytes"`
	MinDimension         int          `mapstructure:"min_dimension" json:"min_dimension"`
	MaxDimension         int          `mapstructure:"max_dimension" json:"max_dimension"`
	AspectRatios         [][2]float64 `mapstructure:"aspect_ratios" json:"aspect_ratios"`
	AspectTolerance      float64      `mapstructure:"aspect_tolerance" json:"aspect_tolerance"`
	DarkBrightness       float64      `mapstructure:"dark_brightness" json:"dark_brightness"`
	BrightBrightness     float64      `mapstructure:"bright_brightness" json:"bright_brightness"`
	OversizeConfidence   float64      `mapstructure:"oversize_confidence" json:"oversize_confidence"`
	TooSmallConfidence   float64      `mapstructure:"too_small_confidence" json:"too_small_confidence"`
	TooLargeConfidence   float64      `mapstructure:"too_large_confidence" json:"too_large_confidence"`
	AspectConfidence     float64      `mapstructure:"aspect_confidence" json:"aspect_confidence"`
	BrightnessConfidence float64      `mapstructure:"brightness_confidence" json:"brightness_confidence"`
	ErrorConfidence      float64      `mapstructure:"error_confidence" json:"error_confidence"`
}

// RuleSpec 规则的可序列化描述，来自默认值或配置文件
type RuleSpec struct {
	Patterns map[PatternGroup][]string `mapstructure:"patterns" json:"patterns"`
	Weights  Weights                   `mapstructure:"weights" json:"weights"`
	Text     TextThresholds            `mapstructure:"text" json:"text"`
	Image    ImageThresholds           `mapstructure:"image" json:"image"`
}

// DefaultRuleSpec 返回默认规则表
func DefaultRuleSpec() RuleSpec {
	return RuleSpec{
		Patterns: map[PatternGroup][]string{
			GroupProfanity: {
				`\b(?:fuck|shit|damn|bitch|asshole|bastard|crap)\b`,
				`\b(?:wtf|stfu|gtfo)\b`,
			},
			GroupSpam: {
				`\b(?:buy now|limited time|act fast|urgent|guaranteed)\b`,
				`\b(?:free money|work from home|make \$\d+)\b`,
				`(?:http[s]?://|www\.)[^\s]+`,
				`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`,
				`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
			},
			GroupSuspicious: {
				`\b(?:drugs|weed|marijuana|cocaine|pills|mdma)\b`,
				`\b(?:fake id|fake ids|underage drinking)\b`,
				`\b(?:cheat|plagiarism|essay writing service)\b`,
				`\b(?:harassment|stalking|threatening)\b`,
			},
			GroupAcademic: {
				`\b(?:homework help|do my homework|write my essay)\b`,
				`\b(?:test answers|exam solutions|assignment answers)\b`,
				`\b(?:chegg|course hero|studyblue) (?:account|answers)\b`,
			},
			GroupPrice: {
				`\$0\.01|\$1\.00|free(?!\s+(?:shipping|delivery))`,
				`(?:dm|message|text) (?:me )?for (?:price|cost)`,
			},
			GroupDiscriminatory: {
				`\b(?:no (?:blacks|whites|asians|hispanics|jews|muslims|christians))\b`,
				`\b(?:males only|females only|boys only|girls only)\b`,
			},
			GroupCarpoolSafety: {
				`\b(?:party|drinking|alcohol|drunk driving)\b`,
				`\b(?:no questions asked|cash only|off the books)\b`,
			},
		},
		Weights: Weights{
			Profanity:      0.8,
			Spam:           0.7,
			Repetition:     0.6,
			Capitalization: 0.5,
			Punctuation:    0.4,
			Suspicious:     0.9,
			Academic:       0.8,
			Pricing:        0.6,
			Discriminatory: 0.9,
			CarpoolSafety:  0.7,
		},
		Text: TextThresholds{
			MinLength:           5,
			ShortTextConfidence: 0.1,
			FlagConfidence:      0.6,
			FlagIssueCount:      3,
			RepetitionMinWords:  10,
			RepetitionRatio:     0.5,
			UppercaseRatio:      0.3,
			SuspiciousPrice:     10000,
		},
		Image: ImageThresholds{
			MaxBytes:             5 * 1024 * 1024,
			MinDimension:         50,
			MaxDimension:         4000,
			AspectRatios:         [][2]float64{{10, 1}, {1, 10}, {20, 1}, {1, 20}},
			AspectTolerance:      0.1,
			DarkBrightness:       30,
			BrightBrightness:     240,
			OversizeConfidence:   0.6,
			TooSmallConfidence:   0.5,
			TooLargeConfidence:   0.4,
			AspectConfidence:     0.3,
			BrightnessConfidence: 0.2,
			ErrorConfidence:      0.8,
		},
	}
}

// Clone 深拷贝，避免共享底层切片
func (s RuleSpec) Clone() RuleSpec {
	out := s
	out.Patterns = make(map[PatternGroup][]string, len(s.Patterns))
	for g, p := range s.Patterns {
		out.Patterns[g] = append([]string(nil), p...)
	}
	out.Image.AspectRatios = append([][2]float64(nil), s.Image.AspectRatios...)
	return out
}

// RuleSet 编译后的只读规则表，构建完成后不可修改，可在多个 goroutine 间共享
type RuleSet struct {
	Version  uint64
	Weights  Weights
	Text     TextThresholds
	Image    ImageThresholds
	spec     RuleSpec
	patterns map[PatternGroup][]*regexp2.Regexp
}

// NewRuleSet 编译规则描述
func NewRuleSet(spec RuleSpec) (*RuleSet, error) {
	spec = spec.Clone()
	rs := &RuleSet{
		Weights:  spec.Weights,
		Text:     spec.Text,
		Image:    spec.Image,
		spec:     spec,
		patterns: make(map[PatternGroup][]*regexp2.Regexp, len(spec.Patterns)),
	}
	for group, exprs := range spec.Patterns {
		compiled := make([]*regexp2.Regexp, 0, len(exprs))
		for _, expr := range exprs {
			re, err := regexp2.Compile(expr, regexp2.IgnoreCase)
			if err != nil {
				return nil, fmt.Errorf("compile %s pattern %q: %w", group, expr, err)
			}
			re.MatchTimeout = patternMatchTimeout
			compiled = append(compiled, re)
		}
		rs.patterns[group] = compiled
	}
	return rs, nil
}

// Patterns 返回分组下的编译结果
func (r *RuleSet) Patterns(group PatternGroup) []*regexp2.Regexp {
	return r.patterns[group]
}

// Spec 返回规则描述副本
func (r *RuleSet) Spec() RuleSpec {
	return r.spec.Clone()
}

// RuleProvider 引擎获取当前规则表的方式
type RuleProvider interface {
	Current() *RuleSet
}

// Current 静态规则表本身即为 provider，便于测试注入
func (r *RuleSet) Current() *RuleSet {
	return r
}

// RuleRegistry 带版本号的规则表，更新时整体替换，读取无锁
type RuleRegistry struct {
	mu      sync.Mutex
	current atomic.Pointer[RuleSet]
}

// NewRuleRegistry 以初始规则描述构建 registry
func NewRuleRegistry(spec RuleSpec) (*RuleRegistry, error) {
	rs, err := NewRuleSet(spec)
	if err != nil {
		return nil, err
	}
	rs.Version = 1
	reg := &RuleRegistry{}
	reg.current.Store(rs)
	return reg, nil
}

func (r *RuleRegistry) Current() *RuleSet {
	return r.current.Load()
}

// Update 在当前规则描述副本上执行 mutate，编译成功后原子替换
func (r *RuleRegistry) Update(mutate func(spec *RuleSpec) error) (*RuleSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	spec := old.Spec()
	if err := mutate(&spec); err != nil {
		return nil, err
	}
	next, err := NewRuleSet(spec)
	if err != nil {
		return nil, err
	}
	next.Version = old.Version + 1
	r.current.Store(next)
	return next, nil
}

// KeywordPattern 将字面短语转换为单词边界模式
func KeywordPattern(phrase string) string {
	return `\b(?:` + regexp2.Escape(phrase) + `)\b`
}

// AddKeyword 向分组追加一个字面关键词
func (r *RuleRegistry) AddKeyword(group PatternGroup, phrase string) (*RuleSet, error) {
	if phrase == "" {
		return nil, ErrEmptyKeyword
	}
	pattern := KeywordPattern(phrase)
	return r.Update(func(spec *RuleSpec) error {
		for _, p := range spec.Patterns[group] {
			if p == pattern {
				return nil
			}
		}
		spec.Patterns[group] = append(spec.Patterns[group], pattern)
		return nil
	})
}

// RemoveKeyword 删除关键词。依次尝试 AddKeyword 生成的模式、完整模式串、
// 以及 \b(?:a|b)\b 形式模式中的单个候选词；候选词删空时整条模式一起删除
func (r *RuleRegistry) RemoveKeyword(group PatternGroup, phrase string) (*RuleSet, error) {
	if phrase == "" {
		return nil, ErrEmptyKeyword
	}
	return r.Update(func(spec *RuleSpec) error {
		patterns := spec.Patterns[group]
		for _, target := range []string{KeywordPattern(phrase), phrase} {
			for i, p := range patterns {
				if p == target {
					spec.Patterns[group] = append(patterns[:i:i], patterns[i+1:]...)
					return nil
				}
			}
		}
		for i, p := range patterns {
			rest, ok := dropAlternative(p, phrase)
			if !ok {
				continue
			}
			if rest == "" {
				spec.Patterns[group] = append(patterns[:i:i], patterns[i+1:]...)
			} else {
				patterns[i] = rest
			}
			return nil
		}
		return ErrKeywordNotFound
	})
}

// dropAlternative 从 \b(?:a|b|c)\b 中去掉与 phrase 相同的候选词，其它形式的模式不处理
func dropAlternative(pattern, phrase string) (string, bool) {
	const prefix, suffix = `\b(?:`, `)\b`
	if !strings.HasPrefix(pattern, prefix) || !strings.HasSuffix(pattern, suffix) {
		return "", false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(pattern, prefix), suffix)
	if strings.ContainsAny(inner, "()") {
		return "", false
	}
	escaped := regexp2.Escape(phrase)
	alts := strings.Split(inner, "|")
	for i, alt := range alts {
		if strings.EqualFold(alt, phrase) || strings.EqualFold(alt, escaped) {
			alts = append(alts[:i:i], alts[i+1:]...)
			if len(alts) == 0 {
				return "", true
			}
			return prefix + strings.Join(alts, "|") + suffix, true
		}
	}
	return "", false
}

// SetTextThresholds 调整文本阈值
func (r *RuleRegistry) SetTextThresholds(t TextThresholds) (*RuleSet, error) {
	if t.FlagConfidence < 0 || t.FlagConfidence > 1 || t.FlagIssueCount <= 0 || t.MinLength < 0 {
		return nil, ErrInvalidThreshold
	}
	return r.Update(func(spec *RuleSpec) error {
		spec.Text = t
		return nil
	})
}
