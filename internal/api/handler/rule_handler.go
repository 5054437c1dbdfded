package handler

import (
	"Bazaar/internal/api/dto"
	"Bazaar/internal/pkg/response"
	"Bazaar/internal/service"

	"github.com/gin-gonic/gin"
)

// RuleHandler 审核规则管理，仅管理员与审核员可用
type RuleHandler struct {
	ruleSvc service.RuleService
}

func NewRuleHandler(ruleSvc service.RuleService) *RuleHandler {
	return &RuleHandler{
		ruleSvc: ruleSvc,
	}
}

func (s *RuleHandler) GetRules(c *gin.Context) {
	response.Success(c, s.ruleSvc.GetRules(c.Request.Context()))
}

func (s *RuleHandler) AddKeyword(c *gin.Context) {
	var req dto.KeywordDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	rules, err := s.ruleSvc.AddKeyword(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rules)
}

func (s *RuleHandler) RemoveKeyword(c *gin.Context) {
	var req dto.KeywordDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	rules, err := s.ruleSvc.RemoveKeyword(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rules)
}

func (s *RuleHandler) SetTextThresholds(c *gin.Context) {
	var req dto.TextThresholdsDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	rules, err := s.ruleSvc.SetTextThresholds(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rules)
}
