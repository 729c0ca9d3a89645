package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	settingsdomain "github.com/smallbiznis/atelier/internal/settings/domain"
)

func (s *Server) ListSettings(c *gin.Context) {
	settings, err := s.settingsSvc.AllSettings(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

type settingValueRequest struct {
	Value *string `json:"value"`
}

func (s *Server) PutSetting(c *gin.Context) {
	var req settingValueRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Value == nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	key := c.Param("key")
	if err := s.settingsSvc.PutSetting(c.Request.Context(), key, *req.Value); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "key": key, "value": *req.Value})
}

func (s *Server) GetTheme(c *gin.Context) {
	theme, err := s.settingsSvc.GetTheme(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, theme)
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (s *Server) SetTheme(c *gin.Context) {
	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, settingsdomain.ErrInvalidTheme)
		return
	}
	theme, err := s.settingsSvc.SetTheme(c.Request.Context(), req.Theme)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "theme": theme.Theme, "resolved": theme.Resolved})
}

func (s *Server) ListThemes(c *gin.Context) {
	c.JSON(http.StatusOK, settingsdomain.Themes)
}

func (s *Server) ListCategories(c *gin.Context) {
	items, err := s.settingsSvc.ListCategories(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) CreateCategory(c *gin.Context) {
	var req settingsdomain.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, settingsdomain.ErrInvalidName)
		return
	}
	item, err := s.settingsSvc.CreateCategory(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) UpdateCategory(c *gin.Context) {
	var req settingsdomain.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, settingsdomain.ErrInvalidName)
		return
	}
	item, err := s.settingsSvc.UpdateCategory(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) DeleteCategory(c *gin.Context) {
	if err := s.settingsSvc.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type tagRequest struct {
	Name string `json:"name"`
}

func (s *Server) listTags(kind settingsdomain.TagKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := s.settingsSvc.ListTags(c.Request.Context(), kind)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func (s *Server) createTag(kind settingsdomain.TagKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, settingsdomain.ErrInvalidName)
			return
		}
		item, err := s.settingsSvc.CreateTag(c.Request.Context(), kind, req.Name)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

func (s *Server) deleteTag(kind settingsdomain.TagKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.settingsSvc.DeleteTag(c.Request.Context(), kind, c.Param("id")); err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
