package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"autotrade/internal/models"
	dbconfig "autotrade/pkg/config"
)

// GetActionExecutions returns the audit trail for one action with pagination
func GetActionExecutions(c *gin.Context) {
	actionID := c.Param("id")

	var action models.Action
	if err := dbconfig.DB.First(&action, "id = ?", actionID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var total int64
	if err := dbconfig.DB.Model(&models.ActionExecution{}).
		Where("action_id = ?", actionID).
		Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var executions []models.ActionExecution
	if err := dbconfig.DB.Where("action_id = ?", actionID).
		Order("triggered_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&executions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"data":      executions,
	})
}

// GetExecution returns a single execution record by ID
func GetExecution(c *gin.Context) {
	var execution models.ActionExecution
	if err := dbconfig.DB.First(&execution, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, execution)
}
