package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/capstack-hq/capstack-backend/internal/api/middleware"
	"github.com/capstack-hq/capstack-backend/internal/models"
	"github.com/capstack-hq/capstack-backend/internal/service"
)

type MemberHandler struct {
	memberService     service.MemberService
	bulkMemberService service.BulkMemberService
}

// BulkManageMembers reconciles company membership against a submitted list.
// 201 with counts on success, 422 with the structured error list otherwise.
func (h *MemberHandler) BulkManageMembers(c *gin.Context) {
	companyID := c.Param("id")
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	isAdmin, err := h.memberService.IsAdmin(c.Request.Context(), companyID, userID)
	if err != nil {
		log.Printf("[MemberHandler][BulkManageMembers] companyID=%s userID=%s error=%v", companyID, userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check permissions"})
		return
	}
	if !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only administrators can manage members"})
		return
	}

	var req models.BulkMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.bulkMemberService.BatchManageMembers(c.Request.Context(), companyID, userID, req.Members)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListMembers lists a company's members
func (h *MemberHandler) ListMembers(c *gin.Context) {
	companyID := c.Param("id")
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	members, err := h.memberService.ListMembers(c.Request.Context(), companyID, userID)
	if err != nil {
		if err == service.ErrForbidden {
			c.JSON(http.StatusForbidden, gin.H{"error": "You are not a member of this company"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}

	c.JSON(http.StatusOK, members)
}

// ListInvitations lists a company's pending invitations (admin only)
func (h *MemberHandler) ListInvitations(c *gin.Context) {
	companyID := c.Param("id")
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	invitations, err := h.memberService.ListPendingInvitations(c.Request.Context(), companyID, userID)
	if err != nil {
		if err == service.ErrForbidden {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only administrators can view invitations"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch invitations"})
		return
	}

	c.JSON(http.StatusOK, invitations)
}

// RemoveMember removes a member from the company
func (h *MemberHandler) RemoveMember(c *gin.Context) {
	companyID := c.Param("id")
	targetUserID := c.Param("userId")
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	err := h.memberService.RemoveMember(c.Request.Context(), companyID, userID, targetUserID)
	if err != nil {
		log.Printf("[MemberHandler][RemoveMember] companyID=%s targetUserID=%s userID=%s error=%v",
			companyID, targetUserID, userID, err)
		switch err {
		case service.ErrForbidden:
			c.JSON(http.StatusForbidden, gin.H{"error": "Only administrators can remove members"})
		case service.ErrLastAdmin:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Cannot remove the last administrator"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// LeaveCompany removes the caller from the company
func (h *MemberHandler) LeaveCompany(c *gin.Context) {
	companyID := c.Param("id")
	userID, ok := middleware.RequireUserID(c)
	if !ok {
		return
	}

	err := h.memberService.LeaveCompany(c.Request.Context(), companyID, userID)
	if err != nil {
		switch err {
		case service.ErrNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "You are not a member of this company"})
		case service.ErrLastAdmin:
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Cannot leave as the last administrator"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave company"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left company"})
}
