package service

import (
	"context"
	"errors"
	"testing"

	"Bazaar/internal/api/dto"
	"Bazaar/internal/pkg/moderation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRuleStore struct {
	saved   []moderation.RuleSpec
	saveErr error
}

func (s *memoryRuleStore) Load(context.Context) (*moderation.RuleSpec, error) {
	if len(s.saved) == 0 {
		return nil, nil
	}
	spec := s.saved[len(s.saved)-1]
	return &spec, nil
}

func (s *memoryRuleStore) Save(_ context.Context, spec moderation.RuleSpec) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, spec)
	return nil
}

func newRuleFixture(t *testing.T, store RuleStore) (*moderation.RuleRegistry, RuleService) {
	t.Helper()
	reg, err := moderation.NewRuleRegistry(moderation.DefaultRuleSpec())
	require.NoError(t, err)
	return reg, NewRuleService(reg, store)
}

func TestRuleServiceKeywords(t *testing.T) {
	store := &memoryRuleStore{}
	reg, svc := newRuleFixture(t, store)
	ctx := context.Background()

	res, err := svc.AddKeyword(ctx, &dto.KeywordDTO{Group: "spam", Phrase: "crypto giveaway"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Version)
	assert.Contains(t, res.Patterns[moderation.GroupSpam], moderation.KeywordPattern("crypto giveaway"))
	require.Len(t, store.saved, 1)

	// 新关键词立即作用于文本引擎
	r := moderation.NewTextEngine(reg).Evaluate("join our crypto giveaway today", moderation.CategoryGeneral, nil)
	assert.Contains(t, r.Issues, "Potential spam content detected")

	res, err = svc.RemoveKeyword(ctx, &dto.KeywordDTO{Group: "spam", Phrase: "crypto giveaway"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Version)
	assert.NotContains(t, res.Patterns[moderation.GroupSpam], moderation.KeywordPattern("crypto giveaway"))

	_, err = svc.RemoveKeyword(ctx, &dto.KeywordDTO{Group: "spam", Phrase: "crypto giveaway"})
	assert.ErrorIs(t, err, moderation.ErrKeywordNotFound)

	_, err = svc.AddKeyword(ctx, &dto.KeywordDTO{Group: "nonsense", Phrase: "x"})
	assert.ErrorIs(t, err, ErrRuleGroupInvalid)
	assert.Equal(t, uint64(3), svc.GetRules(ctx).Version)
}

func TestRuleServiceRemoveDefaultKeyword(t *testing.T) {
	store := &memoryRuleStore{}
	reg, svc := newRuleFixture(t, store)
	ctx := context.Background()

	res, err := svc.RemoveKeyword(ctx, &dto.KeywordDTO{Group: "suspicious", Phrase: "weed"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Version)
	require.Len(t, store.saved, 1)

	r := moderation.NewTextEngine(reg).Evaluate("selling weed cheap", moderation.CategoryGeneral, nil)
	assert.NotContains(t, r.Issues, "Suspicious content detected")
}

func TestRuleServiceThresholds(t *testing.T) {
	_, svc := newRuleFixture(t, nil)
	ctx := context.Background()
	before := svc.GetRules(ctx).Text

	conf := 0.9
	res, err := svc.SetTextThresholds(ctx, &dto.TextThresholdsDTO{FlagConfidence: &conf})
	require.NoError(t, err)
	assert.Equal(t, 0.9, res.Text.FlagConfidence)
	// 未传字段保持原值
	assert.Equal(t, before.MinLength, res.Text.MinLength)
	assert.Equal(t, before.FlagIssueCount, res.Text.FlagIssueCount)

	bad := 0
	_, err = svc.SetTextThresholds(ctx, &dto.TextThresholdsDTO{FlagIssueCount: &bad})
	assert.ErrorIs(t, err, moderation.ErrInvalidThreshold)
	assert.Equal(t, res.Version, svc.GetRules(ctx).Version)
}

func TestRuleServiceStoreFailureKeepsChange(t *testing.T) {
	store := &memoryRuleStore{saveErr: errors.New("redis down")}
	_, svc := newRuleFixture(t, store)

	res, err := svc.AddKeyword(context.Background(), &dto.KeywordDTO{Group: "academic", Phrase: "exam leak"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Version)
	assert.Empty(t, store.saved)
}
