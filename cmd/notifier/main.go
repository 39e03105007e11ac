package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	logrus "github.com/sirupsen/logrus"

	"autotrade/internal/notify"
	"autotrade/pkg/config"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using process environment")
	}

	// Initialize logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	// Initialize RabbitMQ
	config.InitRabbitMQ()
	defer config.RabbitMQ.Close()

	msgConsumer, err := config.NewConsumer(notify.QueueName)
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	webhookURL := os.Getenv("NOTIFY_WEBHOOK_URL")
	if webhookURL == "" {
		logrus.Warn("NOTIFY_WEBHOOK_URL not set, notifications will only be logged")
	}

	logrus.Info("Notification worker started, waiting for messages...")

	err = msgConsumer.Consume(func(body []byte) error {
		var msg notify.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			logrus.Errorf("Failed to unmarshal notification: %v", err)
			// Malformed payloads will never parse; requeueing just loops them
			return nil
		}

		logrus.WithFields(logrus.Fields{
			"kind":      msg.Kind,
			"action_id": msg.ActionID,
			"user_id":   msg.UserID,
			"symbol":    msg.Symbol,
		}).Info(msg.Body)

		if webhookURL == "" {
			return nil
		}
		return deliver(webhookURL, msg)
	})
	if err != nil {
		logrus.Fatal("Consumer stopped: ", err)
	}
}

// deliver posts the notification to the configured webhook. A non-2xx
// response is an error so the message gets requeued and retried.
func deliver(url string, msg notify.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
