package handlers

import (
	"net/http"

	"github.com/flowstock/flowstock_backend/models"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/gin-gonic/gin"
)

func CreateSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		supplier, err := models.CreateSupplier(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "supplierHandler", "CreateSupplierHandler", err)
			return
		}
		c.JSON(http.StatusCreated, supplier)
	}
}

func UpdateSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewSupplier
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		supplier, err := models.UpdateSupplier(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, "supplierHandler", "UpdateSupplierHandler", err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func GetSupplierHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c, "id")
		if !ok {
			return
		}
		supplier, err := models.GetSupplier(c.Request.Context(), id)
		if err != nil {
			respondError(c, "supplierHandler", "GetSupplierHandler", err)
			return
		}
		c.JSON(http.StatusOK, supplier)
	}
}

func ListSuppliersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.Query("active") == "true"
		suppliers, err := models.ListSuppliers(c.Request.Context(), activeOnly, optionalQueryString(c, "search"))
		if err != nil {
			respondError(c, "supplierHandler", "ListSuppliersHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"suppliers": suppliers})
	}
}

func UpsertContractHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productId, ok := pathId(c, "id")
		if !ok {
			return
		}
		var input models.NewProductSupplierContract
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		contract, err := models.UpsertProductSupplierContract(c.Request.Context(), productId, &input)
		if err != nil {
			respondError(c, "supplierHandler", "UpsertContractHandler", err)
			return
		}
		c.JSON(http.StatusOK, contract)
	}
}

func ListContractsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productId, ok := pathId(c, "id")
		if !ok {
			return
		}
		contracts, err := models.ListProductSupplierContracts(c.Request.Context(), productId)
		if err != nil {
			respondError(c, "supplierHandler", "ListContractsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"contracts": contracts})
	}
}

func RemoveContractHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		productId, ok := pathId(c, "id")
		if !ok {
			return
		}
		supplierId, ok := pathId(c, "supplierId")
		if !ok {
			return
		}
		err := models.RemoveProductSupplierContract(c.Request.Context(), productId, supplierId)
		if err != nil {
			respondError(c, "supplierHandler", "RemoveContractHandler", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
