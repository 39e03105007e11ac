package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"autotrade/internal/models"
	dbconfig "autotrade/pkg/config"
)

// ListActions returns a list of all actions
func ListActions(c *gin.Context) {
	var actions []models.Action
	query := dbconfig.DB
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if symbol := c.Query("symbol"); symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}
	if err := query.Order("created_at DESC").Find(&actions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, actions)
}

// GetAction returns a specific action by ID
func GetAction(c *gin.Context) {
	var action models.Action
	if err := dbconfig.DB.First(&action, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, action)
}

// GetActionsByUserID returns actions filtered by user_id with pagination
func GetActionsByUserID(c *gin.Context) {
	userID := c.Param("user_id")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var total int64
	if err := dbconfig.DB.Model(&models.Action{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var actions []models.Action
	if err := dbconfig.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&actions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"page":      page,
		"page_size": pageSize,
		"data":      actions,
	})
}

// CreateAction creates a new action
func CreateAction(c *gin.Context) {
	var request ActionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := request.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action := models.Action{
		UserID:          request.UserID,
		PortfolioID:     request.PortfolioID,
		Status:          models.ActionStatusActive,
		ActionType:      request.ActionType,
		Symbol:          request.Symbol,
		Quantity:        request.Quantity,
		AmountUSD:       request.AmountUSD,
		TriggerType:     request.TriggerType,
		TriggerParams:   request.TriggerParams,
		ValidFrom:       time.Now().UTC(),
		ValidUntil:      request.ValidUntil,
		MaxExecutions:   1,
		CooldownSeconds: request.CooldownSeconds,
		Notes:           request.Notes,
	}
	if request.ValidFrom != nil {
		action.ValidFrom = *request.ValidFrom
	}
	if request.MaxExecutions != nil {
		action.MaxExecutions = *request.MaxExecutions
	}

	if err := dbconfig.DB.Create(&action).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, action)
}

// UpdateAction updates an action's user-editable fields. Terminal actions
// are immutable; execution accounting belongs to the evaluator alone.
func UpdateAction(c *gin.Context) {
	var action models.Action
	if err := dbconfig.DB.First(&action, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	if action.Terminal() {
		c.JSON(http.StatusConflict, gin.H{"error": "Action is " + action.Status + " and can no longer be edited"})
		return
	}

	var request ActionUpdateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if request.Symbol != nil {
		action.Symbol = request.Symbol
	}
	if request.Quantity != nil {
		action.Quantity = request.Quantity
		action.AmountUSD = nil
	}
	if request.AmountUSD != nil {
		action.AmountUSD = request.AmountUSD
		action.Quantity = nil
	}
	if request.TriggerType != nil {
		action.TriggerType = *request.TriggerType
	}
	if len(request.TriggerParams) > 0 {
		action.TriggerParams = request.TriggerParams
	}
	if request.ValidFrom != nil {
		action.ValidFrom = *request.ValidFrom
	}
	if request.ValidUntil != nil {
		action.ValidUntil = request.ValidUntil
	}
	if request.MaxExecutions != nil {
		action.MaxExecutions = *request.MaxExecutions
	}
	if request.CooldownSeconds != nil {
		action.CooldownSeconds = request.CooldownSeconds
	}
	if request.Notes != nil {
		action.Notes = request.Notes
	}

	revalidate := ActionRequest{
		UserID:          action.UserID,
		ActionType:      action.ActionType,
		Symbol:          action.Symbol,
		Quantity:        action.Quantity,
		AmountUSD:       action.AmountUSD,
		TriggerType:     action.TriggerType,
		TriggerParams:   action.TriggerParams,
		MaxExecutions:   &action.MaxExecutions,
		CooldownSeconds: action.CooldownSeconds,
	}
	if err := revalidate.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := dbconfig.DB.Model(&action).Select(
		"symbol", "quantity", "amount_usd", "trigger_type", "trigger_params",
		"valid_from", "valid_until", "max_executions", "cooldown_seconds", "notes",
	).Updates(&action).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, action)
}

// PauseAction pauses an active action
func PauseAction(c *gin.Context) {
	transitionAction(c, models.ActionStatusActive, models.ActionStatusPaused)
}

// ResumeAction resumes a paused action
func ResumeAction(c *gin.Context) {
	transitionAction(c, models.ActionStatusPaused, models.ActionStatusActive)
}

// CancelAction cancels an active or paused action terminally
func CancelAction(c *gin.Context) {
	res := dbconfig.DB.Model(&models.Action{}).
		Where("id = ? AND status IN ?", c.Param("id"),
			[]string{models.ActionStatusActive, models.ActionStatusPaused}).
		Update("status", models.ActionStatusCancelled)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Action is not active or paused"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.ActionStatusCancelled})
}

// transitionAction flips status from one state to another with a single
// conditional update, so a concurrent evaluator never sees a half-applied
// transition.
func transitionAction(c *gin.Context, from, to string) {
	res := dbconfig.DB.Model(&models.Action{}).
		Where("id = ? AND status = ?", c.Param("id"), from).
		Update("status", to)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Action is not " + from})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": to})
}

// DeleteAction deletes an action and, by cascade, its execution history
func DeleteAction(c *gin.Context) {
	res := dbconfig.DB.Delete(&models.Action{}, "id = ?", c.Param("id"))
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Action deleted"})
}
