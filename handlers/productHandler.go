package handlers

import (
	"net/http"
	"strconv"

	"github.com/flowstock/flowstock_backend/models"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/gin-gonic/gin"
)

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

func optionalQueryInt(c *gin.Context, name string) *int {
	if v := c.Query(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return &n
		}
	}
	return nil
}

func optionalQueryString(c *gin.Context, name string) *string {
	if v := c.Query(name); v != "" {
		return &v
	}
	return nil
}

func paginationArgs(c *gin.Context) (*int, *string) {
	return optionalQueryInt(c, "limit"), optionalQueryString(c, "after")
}

func CreateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "productHandler", "CreateProductHandler", err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func UpdateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		product, err := models.UpdateProduct(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "productHandler", "UpdateProductHandler", err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func GetProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, "productHandler", "GetProductHandler", err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func ListProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, after := paginationArgs(c)
		edges, pageInfo, err := models.PaginateProducts(c.Request.Context(), limit, after,
			optionalQueryString(c, "search"), optionalQueryInt(c, "category_id"))
		if err != nil {
			respondError(c, "productHandler", "ListProductsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"edges": edges, "page_info": pageInfo})
	}
}

type adjustStockRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

func AdjustStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req adjustStockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		product, err := models.AdjustProductStock(c.Request.Context(), id, req.Delta, req.Reason)
		if err != nil {
			respondError(c, "productHandler", "AdjustStockHandler", err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func LowStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := models.ListLowStockProducts(c.Request.Context())
		if err != nil {
			respondError(c, "productHandler", "LowStockHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
	}
}

func SkuSuggestionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		categoryId := optionalQueryInt(c, "category_id")
		if categoryId == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "category_id is required"})
			return
		}
		sku, err := models.SuggestSku(c.Request.Context(), *categoryId)
		if err != nil {
			respondError(c, "productHandler", "SkuSuggestionHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sku": sku})
	}
}

// ImportProductsHandler accepts a CSV upload, either as a multipart file
// field named "file" or as the raw request body.
func ImportProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reader := c.Request.Body
		if file, err := c.FormFile("file"); err == nil {
			f, err := file.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
				return
			}
			defer f.Close()
			reader = f
		}

		result, err := models.ImportProductsCSV(c.Request.Context(), reader)
		if err != nil {
			respondError(c, "productHandler", "ImportProductsHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func CreateCategoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProductCategory
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		category, err := models.CreateProductCategory(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "productHandler", "CreateCategoryHandler", err)
			return
		}
		c.JSON(http.StatusCreated, category)
	}
}

func ListCategoriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		categories, err := models.ListProductCategories(c.Request.Context())
		if err != nil {
			respondError(c, "productHandler", "ListCategoriesHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": categories})
	}
}

type skuRuleRequest struct {
	SkuPrefix string `json:"sku_prefix" binding:"required"`
}

func UpdateCategorySkuRuleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var req skuRuleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		category, err := models.UpdateCategorySkuRule(c.Request.Context(), id, req.SkuPrefix)
		if err != nil {
			respondError(c, "productHandler", "UpdateCategorySkuRuleHandler", err)
			return
		}
		c.JSON(http.StatusOK, category)
	}
}
