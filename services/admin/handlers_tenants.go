package main

import (
	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-admin/shared/tenancy"
	"github.com/pavitra93/go-multi-tenant-admin/shared/utils"
)

// handleCreateTenant creates and seeds a tenant
func handleCreateTenant(dir *tenancy.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tenancy.CreateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}

		tenant, err := dir.CreateTenant(c.Request.Context(), req)
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.CreatedResponse(c, "Tenant created successfully", tenant.ID)
	}
}

func handleGetTenants(dir *tenancy.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenants, err := dir.GetAll(c.Request.Context())
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Tenants retrieved successfully", tenants)
	}
}

func handleGetTenant(dir *tenancy.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := dir.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Tenant retrieved successfully", tenant)
	}
}

// handleSetTenantActive activates or deactivates a tenant
func handleSetTenantActive(dir *tenancy.Directory, active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			id  string
			err error
		)
		if active {
			id, err = dir.Activate(c.Request.Context(), c.Param("id"))
		} else {
			id, err = dir.Deactivate(c.Request.Context(), c.Param("id"))
		}
		if err != nil {
			utils.RenderError(c, err)
			return
		}

		message := "Tenant deactivated successfully"
		if active {
			message = "Tenant activated successfully"
		}
		utils.OKResponse(c, message, id)
	}
}

func handleUpdateSubscription(dir *tenancy.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tenancy.UpdateSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}

		id, err := dir.UpdateSubscription(c.Request.Context(), req)
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Tenant subscription updated successfully", id)
	}
}
