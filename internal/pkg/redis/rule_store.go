package redis

import (
	"context"
	"errors"

	"Bazaar/internal/pkg/moderation"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const ruleSpecKey = "moderation:rules"

// RuleStore 持久化运行时修改过的规则表，多实例启动时共享
type RuleStore struct {
	rdb *redis.Client
}

func NewRuleStore(rdb *redis.Client) *RuleStore {
	return &RuleStore{rdb: rdb}
}

// Load 不存在时返回 nil, nil
func (s *RuleStore) Load(ctx context.Context) (*moderation.RuleSpec, error) {
	raw, err := s.rdb.Get(ctx, ruleSpecKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var spec moderation.RuleSpec
	if err = json.Unmarshal(raw, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *RuleStore) Save(ctx context.Context, spec moderation.RuleSpec) error {
	raw, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, ruleSpecKey, raw, 0).Err()
}
