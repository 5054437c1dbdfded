package moderation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuleSetInvalidPattern(t *testing.T) {
	spec := DefaultRuleSpec()
	spec.Patterns[GroupSpam] = append(spec.Patterns[GroupSpam], `(unclosed`)
	_, err := NewRuleSet(spec)
	assert.Error(t, err)
}

func TestRuleSpecCloneIsolated(t *testing.T) {
	assert := assert.New(t)

	rs := MustDefaultRuleSet()
	spec := rs.Spec()
	spec.Patterns[GroupProfanity][0] = "changed"
	spec.Image.AspectRatios[0] = [2]float64{2, 1}

	assert.NotEqual("changed", rs.Spec().Patterns[GroupProfanity][0])
	assert.Equal([2]float64{10, 1}, rs.Spec().Image.AspectRatios[0])
}

func TestRuleRegistryKeywords(t *testing.T) {
	assert := assert.New(t)

	reg, err := NewRuleRegistry(DefaultRuleSpec())
	require.NoError(t, err)
	assert.Equal(uint64(1), reg.Current().Version)
	before := reg.Current()

	rs, err := reg.AddKeyword(GroupProfanity, "jerk")
	require.NoError(t, err)
	assert.Equal(uint64(2), rs.Version)
	assert.Same(rs, reg.Current())
	assert.Len(rs.Patterns(GroupProfanity), len(before.Patterns(GroupProfanity))+1)
	// 旧版本不受影响
	assert.Equal(uint64(1), before.Version)
	assert.Len(before.Patterns(GroupProfanity), 2)

	_, err = reg.AddKeyword(GroupProfanity, "jerk")
	require.NoError(t, err)
	assert.Len(reg.Current().Patterns(GroupProfanity), 3)

	_, err = reg.AddKeyword(GroupProfanity, "")
	assert.ErrorIs(err, ErrEmptyKeyword)

	rs, err = reg.RemoveKeyword(GroupProfanity, "jerk")
	require.NoError(t, err)
	assert.Len(rs.Patterns(GroupProfanity), 2)

	_, err = reg.RemoveKeyword(GroupProfanity, "jerk")
	assert.ErrorIs(err, ErrKeywordNotFound)
}

func TestRuleRegistryRemoveDefaultKeyword(t *testing.T) {
	assert := assert.New(t)

	reg, err := NewRuleRegistry(DefaultRuleSpec())
	require.NoError(t, err)
	eng := NewTextEngine(reg)
	assert.Contains(eng.Evaluate("selling weed cheap", CategoryGeneral, nil).Issues, "Suspicious content detected")

	rs, err := reg.RemoveKeyword(GroupSuspicious, "weed")
	require.NoError(t, err)
	assert.Contains(rs.Spec().Patterns[GroupSuspicious], `\b(?:drugs|marijuana|cocaine|pills|mdma)\b`)
	assert.NotContains(eng.Evaluate("selling weed cheap", CategoryGeneral, nil).Issues, "Suspicious content detected")
	// 同一模式中的其它词仍然生效
	assert.Contains(eng.Evaluate("selling pills cheap", CategoryGeneral, nil).Issues, "Suspicious content detected")

	// 多词候选与完整模式串
	rs, err = reg.RemoveKeyword(GroupDiscriminatory, "males only")
	require.NoError(t, err)
	assert.Contains(rs.Spec().Patterns[GroupDiscriminatory], `\b(?:females only|boys only|girls only)\b`)

	n := len(rs.Patterns(GroupSpam))
	rs, err = reg.RemoveKeyword(GroupSpam, `(?:http[s]?://|www\.)[^\s]+`)
	require.NoError(t, err)
	assert.Len(rs.Patterns(GroupSpam), n-1)

	_, err = reg.RemoveKeyword(GroupSuspicious, "weed")
	assert.ErrorIs(err, ErrKeywordNotFound)
	_, err = reg.RemoveKeyword(GroupSuspicious, "")
	assert.ErrorIs(err, ErrEmptyKeyword)
}

func TestRuleRegistryRemoveLastAlternative(t *testing.T) {
	spec := DefaultRuleSpec()
	spec.Patterns[GroupAcademic] = []string{`\b(?:exam leak)\b`, `\b(?:chegg|course hero) (?:account|answers)\b`}
	reg, err := NewRuleRegistry(spec)
	require.NoError(t, err)

	rs, err := reg.RemoveKeyword(GroupAcademic, "exam leak")
	require.NoError(t, err)
	assert.Equal(t, []string{`\b(?:chegg|course hero) (?:account|answers)\b`}, rs.Spec().Patterns[GroupAcademic])

	// 含嵌套分组的模式只能整条删除
	_, err = reg.RemoveKeyword(GroupAcademic, "chegg")
	assert.ErrorIs(t, err, ErrKeywordNotFound)
}

func TestRuleRegistryKeywordEscaped(t *testing.T) {
	assert := assert.New(t)

	reg, err := NewRuleRegistry(DefaultRuleSpec())
	require.NoError(t, err)
	_, err = reg.AddKeyword(GroupSpam, "c++ tutor")
	require.NoError(t, err)

	eng := NewTextEngine(reg)
	res := eng.Evaluate("need a c++ tutor this week", CategoryGeneral, nil)
	assert.Contains(res.Issues, "Potential spam content detected")
}

func TestRuleRegistryThresholds(t *testing.T) {
	assert := assert.New(t)

	reg, err := NewRuleRegistry(DefaultRuleSpec())
	require.NoError(t, err)

	_, err = reg.SetTextThresholds(TextThresholds{FlagConfidence: 1.5, FlagIssueCount: 3})
	assert.ErrorIs(err, ErrInvalidThreshold)
	assert.Equal(uint64(1), reg.Current().Version)

	th := reg.Current().Text
	th.FlagConfidence = 0.9
	rs, err := reg.SetTextThresholds(th)
	require.NoError(t, err)
	assert.Equal(0.9, rs.Text.FlagConfidence)

	// 0.8 的脏话命中在新阈值下不再触发
	res := NewTextEngine(reg).Evaluate("this damn chair is broken", CategoryGeneral, nil)
	assert.Equal(0.8, res.Confidence)
	assert.False(res.Flagged)
}

func TestRuleRegistryConcurrentReads(t *testing.T) {
	reg, err := NewRuleRegistry(DefaultRuleSpec())
	require.NoError(t, err)
	eng := NewTextEngine(reg)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				eng.Evaluate("selling a used bike, text me for price", CategorySell, nil)
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, err := reg.AddKeyword(GroupSpam, "bike")
		require.NoError(t, err)
		_, err = reg.RemoveKeyword(GroupSpam, "bike")
		require.NoError(t, err)
	}
	wg.Wait()
	assert.Equal(t, uint64(41), reg.Current().Version)
}
