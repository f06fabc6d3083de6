package handlers

import (
	"net/http"

	"github.com/flowstock/flowstock_backend/models"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/gin-gonic/gin"
)

func CreateSalesOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSalesOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		order, err := models.CreateSalesOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "salesOrderHandler", "CreateSalesOrderHandler", err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func GetSalesOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.GetSalesOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, "salesOrderHandler", "GetSalesOrderHandler", err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func ListSalesOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, after := paginationArgs(c)

		var status *models.SalesOrderStatus
		if v := c.Query("status"); v != "" {
			parsed, err := models.ParseSalesOrderStatus(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
				return
			}
			status = &parsed
		}

		edges, pageInfo, err := models.PaginateSalesOrders(c.Request.Context(), limit, after,
			status, optionalQueryString(c, "customer"))
		if err != nil {
			respondError(c, "salesOrderHandler", "ListSalesOrdersHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"edges": edges, "page_info": pageInfo})
	}
}

func ConfirmSalesOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.ConfirmSalesOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, "salesOrderHandler", "ConfirmSalesOrderHandler", err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func CancelSalesOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		order, err := models.CancelSalesOrder(c.Request.Context(), id)
		if err != nil {
			respondError(c, "salesOrderHandler", "CancelSalesOrderHandler", err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
