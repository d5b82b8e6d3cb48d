package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/brybell/backend/internal/dto"
	"github.com/brybell/backend/internal/search"
)

// Index failures surface as 500: the index is an upstream dependency and the
// caller (a catalog-change publisher) is expected to retry.
type SearchHandler struct {
	gateway *search.Gateway
}

func NewSearchHandler(gateway *search.Gateway) *SearchHandler {
	return &SearchHandler{gateway: gateway}
}

func (h *SearchHandler) Search(c *gin.Context) {
	var q dto.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	results, err := h.gateway.Search(c.Request.Context(), search.Query{
		Text:     q.Q,
		Category: q.Category,
		Brand:    q.Brand,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Skip:     q.Skip,
		Limit:    q.Limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed: " + err.Error()})
		return
	}

	resp := dto.SearchResponse{
		Total:       results.Total,
		Results:     make([]dto.SearchResult, 0, len(results.Hits)),
		Suggestions: []string{},
	}
	for _, hit := range results.Hits {
		resp.Results = append(resp.Results, dto.SearchResult{
			ID:          hit.ID,
			Name:        hit.Name,
			Description: hit.Description,
			Price:       hit.Price,
			Category:    hit.Category,
			Brand:       hit.Brand,
			ImageURL:    hit.ImageURL,
			Score:       hit.Score,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) Suggestions(c *gin.Context) {
	q := c.Query("q")
	if len(q) < 2 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "q must be at least 2 characters"})
		return
	}

	suggestions, err := h.gateway.Suggest(c.Request.Context(), q, 5)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Suggestions failed: " + err.Error()})
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	c.JSON(http.StatusOK, dto.SuggestionsResponse{Suggestions: suggestions})
}

func (h *SearchHandler) Filters(c *gin.Context) {
	facets, err := h.gateway.Facets(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Filter fetch failed: " + err.Error()})
		return
	}

	resp := dto.FiltersResponse{
		Categories: facets.Categories,
		Brands:     facets.Brands,
		PriceRange: dto.PriceRange{Min: facets.MinPrice, Max: facets.MaxPrice},
	}
	if resp.Categories == nil {
		resp.Categories = []string{}
	}
	if resp.Brands == nil {
		resp.Brands = []string{}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SearchHandler) Index(c *gin.Context) {
	var req dto.IndexProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if err := h.gateway.Index(c.Request.Context(), toDocument(req)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Indexing failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product indexed successfully", "id": req.ID})
}

func (h *SearchHandler) BulkIndex(c *gin.Context) {
	var reqs []dto.IndexProductRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	docs := make([]search.Document, 0, len(reqs))
	for _, req := range reqs {
		docs = append(docs, toDocument(req))
	}

	if err := h.gateway.BulkIndex(c.Request.Context(), docs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Bulk indexing failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Bulk indexing completed", "indexed": len(docs)})
}

func (h *SearchHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ID"})
		return
	}

	if err := h.gateway.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Delete failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product removed from index"})
}

func toDocument(req dto.IndexProductRequest) search.Document {
	return search.Document{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Brand:       req.Brand,
		ImageURL:    req.ImageURL,
	}
}
