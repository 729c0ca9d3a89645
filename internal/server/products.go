package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/atelier/internal/catalog/domain"
	"github.com/smallbiznis/atelier/internal/imageorder"
	"github.com/smallbiznis/atelier/internal/media"
)

// maxProductForm bounds a product multipart body: every image slot at the
// upload limit plus room for the text fields.
const maxProductForm = imageorder.MaxSlots*media.MaxUploadBytes + 1<<20

func (s *Server) ListProducts(c *gin.Context) {
	items, err := s.catalogSvc.List(c.Request.Context(), catalogdomain.ListRequest{
		Category: strings.TrimSpace(c.Query("category")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) ListProductCategories(c *gin.Context) {
	items, err := s.catalogSvc.Categories(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) ListFeaturedProducts(c *gin.Context) {
	items, err := s.catalogSvc.Featured(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) GetProduct(c *gin.Context) {
	item, err := s.catalogSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) AdminListProducts(c *gin.Context) {
	items, err := s.catalogSvc.AdminList(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) CreateProduct(c *gin.Context) {
	form, err := readMultipart(c, maxProductForm)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	fields, err := productFields(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	images, err := readUploads(form, "images")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	item, err := s.catalogSvc.Create(c.Request.Context(), catalogdomain.CreateRequest{
		ProductFields: fields,
		Images:        images,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"id":      item.ID,
		"message": "Produit ajouté avec succès",
		"product": item,
	})
}

// UpdateProduct applies the editor commit: fields, queued deletions
// (deleted_image_ids), new files (images) and the final layout (image_order).
func (s *Server) UpdateProduct(c *gin.Context) {
	form, err := readMultipart(c, maxProductForm)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	fields, err := productFields(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	images, err := readUploads(form, "images")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	deleted, err := parseIDList(c.PostForm("deleted_image_ids"))
	if err != nil {
		AbortWithError(c, newValidationError("deleted_image_ids", "invalid_request", "Liste d'images invalide"))
		return
	}
	var plan []imageorder.PlanEntry
	if raw := strings.TrimSpace(c.PostForm("image_order")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &plan); err != nil {
			AbortWithError(c, imageorder.ErrInvalidPlan)
			return
		}
	}

	item, err := s.catalogSvc.Update(c.Request.Context(), catalogdomain.UpdateRequest{
		ID:              c.Param("id"),
		ProductFields:   fields,
		DeletedImageIDs: deleted,
		NewImages:       images,
		ImageOrder:      plan,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Produit modifié avec succès",
		"product": item,
	})
}

func (s *Server) DeleteProduct(c *gin.Context) {
	if err := s.catalogSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Produit supprimé avec succès"})
}

func (s *Server) DeleteProductImage(c *gin.Context) {
	item, err := s.catalogSvc.DeleteImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Image supprimée avec succès", "product": item})
}

type reorderImagesRequest struct {
	Images []catalogdomain.ImagePosition `json:"images"`
}

func (s *Server) ReorderProductImages(c *gin.Context) {
	var req reorderImagesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Images == nil {
		AbortWithError(c, catalogdomain.ErrInvalidReorder)
		return
	}
	item, err := s.catalogSvc.ReorderImages(c.Request.Context(), c.Param("id"), req.Images)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Ordre des images mis à jour", "product": item})
}

func productFields(c *gin.Context) (catalogdomain.ProductFields, error) {
	fields := catalogdomain.ProductFields{
		Name:     c.PostForm("name"),
		Category: c.PostForm("category"),
	}
	if desc, ok := c.GetPostForm("description"); ok {
		fields.Description = &desc
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(strings.Replace(c.PostForm("price"), ",", ".", 1)), 64)
	if err != nil {
		return fields, catalogdomain.ErrInvalidPrice
	}
	fields.Price = price

	stock, err := strconv.Atoi(strings.TrimSpace(c.PostForm("stock")))
	if err != nil {
		return fields, catalogdomain.ErrInvalidStock
	}
	fields.Stock = stock

	if fields.StoneIDs, err = parseIDList(c.PostForm("stone_ids")); err != nil {
		return fields, catalogdomain.ErrInvalidStone
	}
	if fields.ColorIDs, err = parseIDList(c.PostForm("color_ids")); err != nil {
		return fields, catalogdomain.ErrInvalidColor
	}
	return fields, nil
}

// parseIDList reads a JSON array of ids. Entries may be numbers or strings;
// numbers are kept as written so large snowflake ids are not rounded.
func parseIDList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		v := strings.TrimSpace(string(entry))
		if strings.HasPrefix(v, `"`) {
			var str string
			if err := json.Unmarshal(entry, &str); err != nil {
				return nil, err
			}
			v = strings.TrimSpace(str)
		}
		if v == "" || v == "null" {
			return nil, errors.New("empty id")
		}
		out = append(out, v)
	}
	return out, nil
}

func readMultipart(c *gin.Context, limit int64) (*multipart.Form, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, media.ErrTooLarge
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return &multipart.Form{}, nil
		}
		return nil, invalidRequestError()
	}
	return form, nil
}

func readUploads(form *multipart.Form, field string) ([]imageorder.Upload, error) {
	if form == nil || form.File == nil {
		return nil, nil
	}
	headers := form.File[field]
	uploads := make([]imageorder.Upload, 0, len(headers))
	for _, fh := range headers {
		content, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, imageorder.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		})
	}
	return uploads, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > media.MaxUploadBytes {
		return nil, media.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, media.MaxUploadBytes+1))
}
