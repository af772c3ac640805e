package main

import (
	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-admin/shared/claims"
	"github.com/pavitra93/go-multi-tenant-admin/shared/identity"
	"github.com/pavitra93/go-multi-tenant-admin/shared/utils"
)

// handleLogin handles user login against the resolved tenant
func handleLogin(tokens *identity.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req identity.TokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}

		resp, err := tokens.Login(c.Request.Context(), req)
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Login successful", resp)
	}
}

// handleRefreshToken exchanges a session and refresh token pair for a new one.
// The route sits behind RequireAuth, so the bearer session token must still be
// unexpired; TokenService.Refresh itself would accept an expired one.
func handleRefreshToken(tokens *identity.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req identity.RefreshTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}

		resp, err := tokens.Refresh(c.Request.Context(), req)
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Token refreshed successfully", resp)
	}
}

// handleGetClaims returns the caller's claims
func handleGetClaims() gin.HandlerFunc {
	return func(c *gin.Context) {
		set, _ := claims.FromContext(c.Request.Context())
		utils.OKResponse(c, "Claims retrieved successfully", set.All())
	}
}
