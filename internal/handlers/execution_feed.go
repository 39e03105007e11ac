package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"autotrade/internal/models"
	dbconfig "autotrade/pkg/config"
)

const (
	feedPollInterval = 2 * time.Second
	feedBatchLimit   = 100
	feedWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin policy is enforced by the CORS layer in front
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ExecutionFeed streams newly inserted execution rows to the client over a
// websocket. The frontend uses it to render fills live instead of polling
// the audit endpoint.
func ExecutionFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// drain client frames so pings and close frames are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	cursor := time.Now().UTC()
	ticker := time.NewTicker(feedPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			var executions []models.ActionExecution
			err := dbconfig.DB.
				Where("triggered_at > ?", cursor).
				Order("triggered_at ASC").
				Limit(feedBatchLimit).
				Find(&executions).Error
			if err != nil {
				log.Warnf("execution feed query failed: %v", err)
				continue
			}
			for _, execution := range executions {
				conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
				if err := conn.WriteJSON(execution); err != nil {
					return
				}
				cursor = execution.TriggeredAt
			}
		}
	}
}
