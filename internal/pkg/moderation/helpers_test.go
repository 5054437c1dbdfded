package moderation

func MustDefaultRuleSet() *RuleSet {
	rs, err := NewRuleSet(DefaultRuleSpec())
	if err != nil {
		panic(err)
	}
	return rs
}
