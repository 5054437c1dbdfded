package service

import (
	"context"
	log "log/slog"

	"Bazaar/internal/api/dto"
	"Bazaar/internal/pkg/metrics"
	"Bazaar/internal/pkg/moderation"
)

// RuleStore 规则表持久化，多实例共享运行时修改
type RuleStore interface {
	Load(ctx context.Context) (*moderation.RuleSpec, error)
	Save(ctx context.Context, spec moderation.RuleSpec) error
}

type RuleService interface {
	GetRules(ctx context.Context) *dto.RuleSetDTO
	AddKeyword(ctx context.Context, req *dto.KeywordDTO) (*dto.RuleSetDTO, error)
	RemoveKeyword(ctx context.Context, req *dto.KeywordDTO) (*dto.RuleSetDTO, error)
	SetTextThresholds(ctx context.Context, req *dto.TextThresholdsDTO) (*dto.RuleSetDTO, error)
}

type ruleServiceImpl struct {
	registry *moderation.RuleRegistry
	store    RuleStore
}

// NewRuleService store 可为 nil，此时修改只在本实例生效
func NewRuleService(registry *moderation.RuleRegistry, store RuleStore) RuleService {
	metrics.RuleSetVersion.Set(float64(registry.Current().Version))
	return &ruleServiceImpl{registry: registry, store: store}
}

func (s *ruleServiceImpl) GetRules(_ context.Context) *dto.RuleSetDTO {
	return toRuleSetDTO(s.registry.Current())
}

func (s *ruleServiceImpl) AddKeyword(ctx context.Context, req *dto.KeywordDTO) (*dto.RuleSetDTO, error) {
	group := moderation.PatternGroup(req.Group)
	if !group.Valid() {
		return nil, ErrRuleGroupInvalid
	}
	rs, err := s.registry.AddKeyword(group, req.Phrase)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "moderation keyword added", "group", group, "version", rs.Version)
	return s.persist(ctx, rs), nil
}

func (s *ruleServiceImpl) RemoveKeyword(ctx context.Context, req *dto.KeywordDTO) (*dto.RuleSetDTO, error) {
	group := moderation.PatternGroup(req.Group)
	if !group.Valid() {
		return nil, ErrRuleGroupInvalid
	}
	rs, err := s.registry.RemoveKeyword(group, req.Phrase)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "moderation keyword removed", "group", group, "version", rs.Version)
	return s.persist(ctx, rs), nil
}

// SetTextThresholds 只覆盖请求中出现的字段
func (s *ruleServiceImpl) SetTextThresholds(ctx context.Context, req *dto.TextThresholdsDTO) (*dto.RuleSetDTO, error) {
	th := s.registry.Current().Text
	if req.MinLength != nil {
		th.MinLength = *req.MinLength
	}
	if req.FlagConfidence != nil {
		th.FlagConfidence = *req.FlagConfidence
	}
	if req.FlagIssueCount != nil {
		th.FlagIssueCount = *req.FlagIssueCount
	}
	if req.UppercaseRatio != nil {
		th.UppercaseRatio = *req.UppercaseRatio
	}
	if req.SuspiciousPrice != nil {
		th.SuspiciousPrice = *req.SuspiciousPrice
	}
	rs, err := s.registry.SetTextThresholds(th)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "moderation thresholds updated", "version", rs.Version)
	return s.persist(ctx, rs), nil
}

// persist 持久化失败不回滚内存中的规则表
func (s *ruleServiceImpl) persist(ctx context.Context, rs *moderation.RuleSet) *dto.RuleSetDTO {
	metrics.RuleSetVersion.Set(float64(rs.Version))
	if s.store != nil {
		if err := s.store.Save(ctx, rs.Spec()); err != nil {
			log.WarnContext(ctx, "persist rule set failed", "version", rs.Version, "err", err)
		}
	}
	return toRuleSetDTO(rs)
}

func toRuleSetDTO(rs *moderation.RuleSet) *dto.RuleSetDTO {
	spec := rs.Spec()
	return &dto.RuleSetDTO{
		Version:  rs.Version,
		Patterns: spec.Patterns,
		Weights:  spec.Weights,
		Text:     spec.Text,
		Image:    spec.Image,
	}
}
