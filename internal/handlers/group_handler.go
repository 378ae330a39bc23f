package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dapoalex/AjoPool/internal/services"
)

type GroupHandler struct {
	GroupService *services.GroupService
}

func NewGroupHandler(groupService *services.GroupService) *GroupHandler {
	return &GroupHandler{GroupService: groupService}
}

func (h *GroupHandler) Create(c *gin.Context) {
	req := services.CreateGroupRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	resp, err := h.GroupService.CreateGroup(c.Request.Context(), callerID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *GroupHandler) Get(c *gin.Context) {
	resp, err := h.GroupService.GetGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.GroupService.ListGroups(c.Request.Context(), callerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (h *GroupHandler) Join(c *gin.Context) {
	var req struct {
		DisplayName string `json:"display_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed request body"})
		return
	}

	member, warnings, err := h.GroupService.JoinGroup(c.Request.Context(), c.Param("id"), callerID(c), req.DisplayName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": member, "warnings": warnings})
}

func (h *GroupHandler) Leave(c *gin.Context) {
	if err := h.GroupService.LeaveGroup(c.Request.Context(), c.Param("id"), callerID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

func (h *GroupHandler) Pause(c *gin.Context) {
	if err := h.GroupService.PauseGroup(c.Request.Context(), c.Param("id"), callerID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (h *GroupHandler) Resume(c *gin.Context) {
	if err := h.GroupService.ResumeGroup(c.Request.Context(), c.Param("id"), callerID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "active"})
}
