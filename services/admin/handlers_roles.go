package main

import (
	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-admin/shared/identity"
	"github.com/pavitra93/go-multi-tenant-admin/shared/utils"
)

func handleCreateRole(roles *identity.RoleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req identity.CreateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}

		id, err := roles.Create(c.Request.Context(), req)
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.CreatedResponse(c, "Role created successfully", id)
	}
}

func handleUpdateRole(roles *identity.RoleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req identity.UpdateRoleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}
		req.ID = c.Param("id")

		id, err := roles.Update(c.Request.Context(), req)
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Role updated successfully", id)
	}
}

func handleDeleteRole(roles *identity.RoleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := roles.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Role deleted successfully", id)
	}
}

func handleGetRoles(roles *identity.RoleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := roles.GetAll(c.Request.Context())
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Roles retrieved successfully", all)
	}
}

func handleGetRole(roles *identity.RoleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := roles.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Role retrieved successfully", role)
	}
}

func handleGetRolePermissions(roles *identity.RoleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := roles.GetWithPermissions(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Role permissions retrieved successfully", role)
	}
}

// handleUpdateRolePermissions replaces a role's permission set
func handleUpdateRolePermissions(roles *identity.RoleService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req identity.UpdateRolePermissionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}
		req.RoleID = c.Param("id")

		message, err := roles.UpdatePermissions(c.Request.Context(), req)
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, message, req.RoleID)
	}
}
