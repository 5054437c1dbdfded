package handler

import (
	"Bazaar/internal/api/dto"
	"Bazaar/internal/api/middleware"
	"Bazaar/internal/model"
	"Bazaar/internal/pkg/response"
	"Bazaar/internal/pkg/util"
	"Bazaar/internal/service"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	postSvc service.PostService
}

func NewPostHandler(postSvc service.PostService) *PostHandler {
	return &PostHandler{
		postSvc: postSvc,
	}
}

// CreatePost 发帖，审核在后台进行，立即返回 202
func (s *PostHandler) CreatePost(c *gin.Context) {
	userID := c.GetUint64(middleware.UserIDKey)

	var req dto.CreatePostDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	if err := util.ValidateDTO(&req); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}

	res, err := s.postSvc.CreatePost(c.Request.Context(), userID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accept(c, res)
}

// CheckSpam 发帖前预检
func (s *PostHandler) CheckSpam(c *gin.Context) {
	var req dto.CheckSpamDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, s.postSvc.CheckSpam(c.Request.Context(), &req))
}

func (s *PostHandler) ListFeed(c *gin.Context) {
	var query dto.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, err)
		return
	}

	posts, err := s.postSvc.ListFeed(c.Request.Context(), query.Page, query.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, posts)
}

func (s *PostHandler) GetPost(c *gin.Context) {
	post, err := s.postSvc.GetPost(c.Request.Context(), c.GetUint64(middleware.UserIDKey), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, post)
}

func (s *PostHandler) GetModerationStatus(c *gin.Context) {
	status, err := s.postSvc.GetModerationStatus(c.Request.Context(), c.GetUint64(middleware.UserIDKey), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

func (s *PostHandler) ListMyPosts(c *gin.Context) {
	var query dto.MyPostsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, err)
		return
	}

	posts, err := s.postSvc.ListMyPosts(c.Request.Context(), c.GetUint64(middleware.UserIDKey), &query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, posts)
}

// UpdatePostStatus 作者关闭或重新开放帖子
func (s *PostHandler) UpdatePostStatus(c *gin.Context) {
	var req dto.UpdatePostStatusDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, err)
		return
	}

	err := s.postSvc.UpdatePostStatus(c.Request.Context(), c.GetUint64(middleware.UserIDKey), c.Param("id"), model.PostStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *PostHandler) DeletePost(c *gin.Context) {
	if err := s.postSvc.DeletePost(c.Request.Context(), c.GetUint64(middleware.UserIDKey), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
