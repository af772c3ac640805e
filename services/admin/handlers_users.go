package main

import (
	"github.com/gin-gonic/gin"
	"github.com/pavitra93/go-multi-tenant-admin/shared/identity"
	"github.com/pavitra93/go-multi-tenant-admin/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-admin/shared/utils"
)

// ChangeUserStatusRequest activates or deactivates a user
type ChangeUserStatusRequest struct {
	Activation *bool `json:"activation" binding:"required"`
}

func handleCreateUser(users *identity.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req identity.CreateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}

		id, err := users.Create(c.Request.Context(), req)
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.CreatedResponse(c, "User created successfully", id)
	}
}

func handleUpdateUser(users *identity.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req identity.UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}
		req.ID = c.Param("id")

		id, err := users.Update(c.Request.Context(), req)
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "User updated successfully", id)
	}
}

func handleChangeUserStatus(users *identity.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangeUserStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}

		id, err := users.ActivateOrDeactivate(c.Request.Context(), c.Param("id"), *req.Activation)
		if err != nil {
			utils.RenderError(c, err)
			return
		}

		message := "User deactivated successfully"
		if *req.Activation {
			message = "User activated successfully"
		}
		utils.OKResponse(c, message, id)
	}
}

// handleChangePassword lets a user change their own password
func handleChangePassword(users *identity.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Param("id") != middleware.UserIDFromContext(c) {
			utils.ForbiddenResponse(c, "Users can only change their own password.")
			return
		}

		var req identity.ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}
		req.UserID = c.Param("id")

		id, err := users.ChangePassword(c.Request.Context(), req)
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Password changed successfully", id)
	}
}

func handleAssignRoles(users *identity.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req identity.UserRolesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format", err.Error())
			return
		}

		id, err := users.AssignRoles(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "User roles updated successfully", id)
	}
}

func handleDeleteUser(users *identity.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := users.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "User deleted successfully", id)
	}
}

func handleGetUsers(users *identity.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := users.GetAll(c.Request.Context())
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "Users retrieved successfully", all)
	}
}

func handleGetUser(users *identity.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "User retrieved successfully", user)
	}
}

func handleGetUserRoles(users *identity.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, err := users.GetUserRoles(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "User roles retrieved successfully", roles)
	}
}

func handleGetUserPermissions(users *identity.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, err := users.GetUserPermissions(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RenderError(c, err)
			return
		}
		utils.OKResponse(c, "User permissions retrieved successfully", perms)
	}
}
