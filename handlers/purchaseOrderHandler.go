package handlers

import (
	"net/http"

	"github.com/flowstock/flowstock_backend/models"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/gin-gonic/gin"
)

func CreatePurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPurchaseOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		order, err := models.CreatePurchaseOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "purchaseOrderHandler", "CreatePurchaseOrderHandler", err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func GetPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.GetPurchaseOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, "purchaseOrderHandler", "GetPurchaseOrderHandler", err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func ListPurchaseOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, after := paginationArgs(c)

		var status *models.PurchaseOrderStatus
		if v := c.Query("status"); v != "" {
			parsed, err := models.ParsePurchaseOrderStatus(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			status = &parsed
		}

		edges, pageInfo, err := models.PaginatePurchaseOrders(c.Request.Context(), limit, after,
			status, optionalQueryInt(c, "supplier_id"))
		if err != nil {
			respondError(c, "purchaseOrderHandler", "ListPurchaseOrdersHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"edges": edges, "page_info": pageInfo})
	}
}

func ReceivePurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.ReceiveItemsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		order, err := models.ReceivePurchaseOrder(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "purchaseOrderHandler", "ReceivePurchaseOrderHandler", err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func CancelPurchaseOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.CancelPurchaseOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, "purchaseOrderHandler", "CancelPurchaseOrderHandler", err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func ReplenishmentSuggestionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		suggestions, err := models.SuggestReplenishment(c.Request.Context())
		if err != nil {
			respondError(c, "purchaseOrderHandler", "ReplenishmentSuggestionsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
	}
}
