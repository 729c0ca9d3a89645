package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	boutiquedomain "github.com/smallbiznis/atelier/internal/boutique/domain"
	"github.com/smallbiznis/atelier/internal/media"
)

func (s *Server) ListBoutiqueImages(c *gin.Context) {
	items, err := s.boutiqueSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) UploadBoutiqueImage(c *gin.Context) {
	form, err := readMultipart(c, media.MaxUploadBytes+1<<20)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	files, err := readUploads(form, "image")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if len(files) == 0 {
		AbortWithError(c, boutiquedomain.ErrMissingImage)
		return
	}

	item, err := s.boutiqueSvc.Upload(c.Request.Context(), boutiquedomain.UploadRequest{
		Filename: files[0].Filename,
		Content:  files[0].Content,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"image":   item,
	})
}

func (s *Server) DeleteBoutiqueImage(c *gin.Context) {
	if err := s.boutiqueSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type boutiqueReorderRequest struct {
	Images []boutiquedomain.Position `json:"images"`
}

func (s *Server) ReorderBoutiqueImages(c *gin.Context) {
	var req boutiqueReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, boutiquedomain.ErrInvalidFormat)
		return
	}
	if err := s.boutiqueSvc.Reorder(c.Request.Context(), req.Images); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
