package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"autotrade/internal/models"
	dbconfig "autotrade/pkg/config"
)

var dbSeq int

// setupTest wires an isolated in-memory database into the package-level DB
// handle and returns a router with the action routes registered.
func setupTest(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dbSeq++
	dsn := fmt.Sprintf("file:handlers_test_%d?mode=memory&cache=shared", dbSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Action{}, &models.ActionExecution{}))
	dbconfig.DB = db

	r := gin.New()
	actions := r.Group("/actions")
	{
		actions.GET("", ListActions)
		actions.POST("", CreateAction)
		actions.GET("/user/:user_id", GetActionsByUserID)
		actions.GET("/:id", GetAction)
		actions.PUT("/:id", UpdateAction)
		actions.DELETE("/:id", DeleteAction)
		actions.POST("/:id/pause", PauseAction)
		actions.POST("/:id/resume", ResumeAction)
		actions.POST("/:id/cancel", CancelAction)
		actions.GET("/:id/executions", GetActionExecutions)
	}
	r.GET("/executions/:id", GetExecution)
	return r
}

func perform(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedAction(t *testing.T, mutate func(*models.Action)) *models.Action {
	t.Helper()
	sym := "AAPL"
	qty := 10.0
	action := &models.Action{
		UserID:        "7f4f3a1e-0000-4000-8000-000000000001",
		Status:        models.ActionStatusActive,
		ActionType:    models.ActionTypeBuy,
		Symbol:        &sym,
		Quantity:      &qty,
		TriggerType:   models.TriggerPriceAbove,
		TriggerParams: json.RawMessage(`{"threshold": 150}`),
		ValidFrom:     time.Now().UTC().Add(-time.Hour),
		MaxExecutions: 1,
	}
	if mutate != nil {
		mutate(action)
	}
	require.NoError(t, dbconfig.DB.Create(action).Error)
	return action
}

func TestCreateAction(t *testing.T) {
	r := setupTest(t)

	t.Run("valid buy action", func(t *testing.T) {
		w := perform(t, r, http.MethodPost, "/actions", gin.H{
			"user_id":        "7f4f3a1e-0000-4000-8000-000000000001",
			"action_type":    "BUY",
			"symbol":         "AAPL",
			"quantity":       10,
			"trigger_type":   "price_above",
			"trigger_params": gin.H{"threshold": 150},
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		var created models.Action
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, models.ActionStatusActive, created.Status)
		assert.Equal(t, 1, created.MaxExecutions)
		assert.Equal(t, 0, created.ExecutionsCount)
		assert.False(t, created.ValidFrom.IsZero())
	})

	t.Run("notify action needs no sizing", func(t *testing.T) {
		w := perform(t, r, http.MethodPost, "/actions", gin.H{
			"user_id":        "7f4f3a1e-0000-4000-8000-000000000001",
			"action_type":    "NOTIFY",
			"trigger_type":   "time_of_day",
			"trigger_params": gin.H{"start": "09:30", "end": "10:00"},
			"max_executions": 5,
		})
		assert.Equal(t, http.StatusCreated, w.Code)

		var created models.Action
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, 5, created.MaxExecutions)
		assert.Nil(t, created.Symbol)
	})

	t.Run("rejected payloads", func(t *testing.T) {
		base := func() gin.H {
			return gin.H{
				"user_id":        "7f4f3a1e-0000-4000-8000-000000000001",
				"action_type":    "BUY",
				"symbol":         "AAPL",
				"quantity":       10,
				"trigger_type":   "price_above",
				"trigger_params": gin.H{"threshold": 150},
			}
		}

		cases := []struct {
			name   string
			mutate func(gin.H)
		}{
			{"unknown action type", func(b gin.H) { b["action_type"] = "SHORT" }},
			{"missing symbol on trade", func(b gin.H) { delete(b, "symbol") }},
			{"both quantity and amount", func(b gin.H) { b["amount_usd"] = 500 }},
			{"no sizing on trade", func(b gin.H) { delete(b, "quantity") }},
			{"negative quantity", func(b gin.H) { b["quantity"] = -1 }},
			{"zero threshold", func(b gin.H) { b["trigger_params"] = gin.H{"threshold": 0} }},
			{"unknown trigger type", func(b gin.H) { b["trigger_type"] = "volume_above" }},
			{"zero max executions", func(b gin.H) { b["max_executions"] = 0 }},
			{"negative cooldown", func(b gin.H) { b["cooldown_seconds"] = -5 }},
			{"inverted validity window", func(b gin.H) {
				b["valid_from"] = "2026-09-01T12:00:00Z"
				b["valid_until"] = "2026-09-01T11:00:00Z"
			}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				body := base()
				tc.mutate(body)
				w := perform(t, r, http.MethodPost, "/actions", body)
				assert.Equal(t, http.StatusBadRequest, w.Code)
			})
		}
	})
}

func TestListAndGetActions(t *testing.T) {
	r := setupTest(t)

	msft := "MSFT"
	active := seedAction(t, nil)
	paused := seedAction(t, func(a *models.Action) {
		a.Status = models.ActionStatusPaused
		a.Symbol = &msft
	})

	t.Run("list all", func(t *testing.T) {
		w := perform(t, r, http.MethodGet, "/actions", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var actions []models.Action
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actions))
		assert.Len(t, actions, 2)
	})

	t.Run("filter by status", func(t *testing.T) {
		w := perform(t, r, http.MethodGet, "/actions?status=paused", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var actions []models.Action
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actions))
		require.Len(t, actions, 1)
		assert.Equal(t, paused.ID, actions[0].ID)
	})

	t.Run("filter by symbol", func(t *testing.T) {
		w := perform(t, r, http.MethodGet, "/actions?symbol=AAPL", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var actions []models.Action
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &actions))
		require.Len(t, actions, 1)
		assert.Equal(t, active.ID, actions[0].ID)
	})

	t.Run("get by id", func(t *testing.T) {
		w := perform(t, r, http.MethodGet, "/actions/"+active.ID, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var got models.Action
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, active.ID, got.ID)
		assert.Equal(t, "AAPL", *got.Symbol)
	})

	t.Run("get missing", func(t *testing.T) {
		w := perform(t, r, http.MethodGet, "/actions/00000000-0000-4000-8000-000000000000", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("by user with pagination", func(t *testing.T) {
		w := perform(t, r, http.MethodGet, "/actions/user/"+active.UserID+"?page=1&page_size=1", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Total    int64           `json:"total"`
			Page     int             `json:"page"`
			PageSize int             `json:"page_size"`
			Data     []models.Action `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(2), resp.Total)
		assert.Len(t, resp.Data, 1)
	})
}

func TestUpdateAction(t *testing.T) {
	r := setupTest(t)

	t.Run("switch sizing mode", func(t *testing.T) {
		action := seedAction(t, nil)
		w := perform(t, r, http.MethodPut, "/actions/"+action.ID, gin.H{"amount_usd": 500})
		assert.Equal(t, http.StatusOK, w.Code)

		var updated models.Action
		require.NoError(t, dbconfig.DB.First(&updated, "id = ?", action.ID).Error)
		require.NotNil(t, updated.AmountUSD)
		assert.Equal(t, 500.0, *updated.AmountUSD)
		assert.Nil(t, updated.Quantity)
	})

	t.Run("retune trigger params", func(t *testing.T) {
		action := seedAction(t, nil)
		w := perform(t, r, http.MethodPut, "/actions/"+action.ID, gin.H{
			"trigger_params": gin.H{"threshold": 175.5},
		})
		assert.Equal(t, http.StatusOK, w.Code)

		var updated models.Action
		require.NoError(t, dbconfig.DB.First(&updated, "id = ?", action.ID).Error)
		assert.JSONEq(t, `{"threshold": 175.5}`, string(updated.TriggerParams))
	})

	t.Run("invalid update is rejected", func(t *testing.T) {
		action := seedAction(t, nil)
		w := perform(t, r, http.MethodPut, "/actions/"+action.ID, gin.H{"quantity": -2})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("terminal action is immutable", func(t *testing.T) {
		action := seedAction(t, func(a *models.Action) { a.Status = models.ActionStatusCompleted })
		w := perform(t, r, http.MethodPut, "/actions/"+action.ID, gin.H{"quantity": 5})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestStatusTransitions(t *testing.T) {
	r := setupTest(t)
	action := seedAction(t, nil)

	currentStatus := func() string {
		var a models.Action
		require.NoError(t, dbconfig.DB.First(&a, "id = ?", action.ID).Error)
		return a.Status
	}

	t.Run("pause active", func(t *testing.T) {
		w := perform(t, r, http.MethodPost, "/actions/"+action.ID+"/pause", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.ActionStatusPaused, currentStatus())
	})

	t.Run("pause paused conflicts", func(t *testing.T) {
		w := perform(t, r, http.MethodPost, "/actions/"+action.ID+"/pause", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("resume paused", func(t *testing.T) {
		w := perform(t, r, http.MethodPost, "/actions/"+action.ID+"/resume", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.ActionStatusActive, currentStatus())
	})

	t.Run("cancel active", func(t *testing.T) {
		w := perform(t, r, http.MethodPost, "/actions/"+action.ID+"/cancel", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.ActionStatusCancelled, currentStatus())
	})

	t.Run("cancelled cannot resume", func(t *testing.T) {
		w := perform(t, r, http.MethodPost, "/actions/"+action.ID+"/resume", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, models.ActionStatusCancelled, currentStatus())
	})
}

func TestDeleteAction(t *testing.T) {
	r := setupTest(t)
	action := seedAction(t, nil)

	w := perform(t, r, http.MethodDelete, "/actions/"+action.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, dbconfig.DB.Model(&models.Action{}).Where("id = ?", action.ID).Count(&count).Error)
	assert.Zero(t, count)

	w = perform(t, r, http.MethodDelete, "/actions/"+action.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExecutionEndpoints(t *testing.T) {
	r := setupTest(t)
	action := seedAction(t, nil)

	base := time.Now().UTC().Add(-time.Hour)
	var executions []models.ActionExecution
	for i := 0; i < 3; i++ {
		exec := models.ActionExecution{
			ActionID:        action.ID,
			TriggeredAt:     base.Add(time.Duration(i) * time.Minute),
			ExecutionStatus: models.ExecutionStatusSuccess,
			Details:         json.RawMessage(`{"price": 151.2}`),
		}
		require.NoError(t, dbconfig.DB.Create(&exec).Error)
		executions = append(executions, exec)
	}

	t.Run("paginated history newest first", func(t *testing.T) {
		w := perform(t, r, http.MethodGet, "/actions/"+action.ID+"/executions?page=1&page_size=2", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Total int64                    `json:"total"`
			Data  []models.ActionExecution `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(3), resp.Total)
		require.Len(t, resp.Data, 2)
		assert.Equal(t, executions[2].ID, resp.Data[0].ID)
		assert.Equal(t, executions[1].ID, resp.Data[1].ID)
	})

	t.Run("history of missing action", func(t *testing.T) {
		w := perform(t, r, http.MethodGet, "/actions/00000000-0000-4000-8000-000000000000/executions", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("single execution", func(t *testing.T) {
		w := perform(t, r, http.MethodGet, "/executions/"+executions[0].ID, nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var got models.ActionExecution
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, action.ID, got.ActionID)
		assert.Equal(t, models.ExecutionStatusSuccess, got.ExecutionStatus)
	})

	t.Run("missing execution", func(t *testing.T) {
		w := perform(t, r, http.MethodGet, "/executions/00000000-0000-4000-8000-000000000000", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
