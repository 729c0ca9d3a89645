package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	inboxdomain "github.com/smallbiznis/atelier/internal/inbox/domain"
	"github.com/smallbiznis/atelier/internal/media"
)

const maxReplyForm = inboxdomain.MaxAttachments*media.MaxUploadBytes + 1<<20

func (s *Server) SubmitContact(c *gin.Context) {
	var req inboxdomain.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, inboxdomain.ErrMissingFields)
		return
	}
	if _, err := s.inboxSvc.SubmitContact(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Message envoyé avec succès ! Nous vous répondrons rapidement.",
	})
}

func (s *Server) ListContacts(c *gin.Context) {
	items, err := s.inboxSvc.ListContacts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type contactStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) SetContactStatus(c *gin.Context) {
	var req contactStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, inboxdomain.ErrInvalidStatus)
		return
	}
	if err := s.inboxSvc.SetContactStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) DeleteContact(c *gin.Context) {
	if err := s.inboxSvc.DeleteContact(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) ListThreads(c *gin.Context) {
	items, err := s.inboxSvc.ListThreads(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) GetThread(c *gin.Context) {
	thread, err := s.inboxSvc.GetThread(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

// ReplyThread accepts either JSON {body} or a multipart form with a body
// field and attachments files.
func (s *Server) ReplyThread(c *gin.Context) {
	req := inboxdomain.ReplyRequest{ThreadID: c.Param("id")}

	if c.ContentType() == "application/json" {
		var body struct {
			Body string `json:"body"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		req.Body = body.Body
	} else {
		form, err := readMultipart(c, maxReplyForm)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		req.Body = c.PostForm("body")
		files, err := readUploads(form, "attachments")
		if err != nil {
			AbortWithError(c, err)
			return
		}
		for _, f := range files {
			req.Attachments = append(req.Attachments, inboxdomain.Attachment{
				Filename: f.Filename,
				Content:  f.Content,
			})
		}
	}

	msg, err := s.inboxSvc.Reply(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) SetThreadStatus(c *gin.Context) {
	var req inboxdomain.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("id")

	resp, err := s.inboxSvc.SetThreadStatus(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
