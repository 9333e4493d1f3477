package handlers

import (
	"net/http"

	"github.com/lumichat/billing/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ModelPricingHandler serves the pricing catalog listing.
type ModelPricingHandler struct {
	db *gorm.DB
}

// NewModelPricingHandler constructs a ModelPricingHandler.
func NewModelPricingHandler(db *gorm.DB) *ModelPricingHandler {
	return &ModelPricingHandler{db: db}
}

// modelPricingItem defines pricing details for a model. Prices are
// serialized as strings so no precision is lost in transit.
type modelPricingItem struct {
	ModelID          string `json:"model_id"`
	PromptPrice      string `json:"prompt_price"`
	CompletionPrice  string `json:"completion_price"`
	InputImagePrice  string `json:"input_image_price"`
	OutputImagePrice string `json:"output_image_price"`
	WebSearchPrice   string `json:"web_search_price"`
}

// List returns the enabled pricing catalog entries.
func (h *ModelPricingHandler) List(c *gin.Context) {
	var rows []models.ModelPrice
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_enabled = ?", true).
		Order("model_id ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query pricing failed"})
		return
	}

	items := make([]modelPricingItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, modelPricingItem{
			ModelID:          row.ModelID,
			PromptPrice:      row.PromptPrice.String(),
			CompletionPrice:  row.CompletionPrice.String(),
			InputImagePrice:  row.InputImagePrice.String(),
			OutputImagePrice: row.OutputImagePrice.String(),
			WebSearchPrice:   row.WebSearchPrice.String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"models": items})
}
