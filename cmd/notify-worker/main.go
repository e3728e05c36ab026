package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/huddleeco-commits/solevault-backend-sub001/app"
	"github.com/huddleeco-commits/solevault-backend-sub001/app/config"
	"github.com/huddleeco-commits/solevault-backend-sub001/app/models"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

func main() {
	baseCtx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.QueueURL == "" {
		log.Fatal("QUEUE_URL environment variable is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(baseCtx)
	if err != nil {
		log.Fatalf("failed to load AWS config: %v", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	log.Printf("Notify worker started, listening on SQS queue: %s", cfg.QueueURL)

	for {
		recvCtx, cancel := context.WithTimeout(baseCtx, 30*time.Second)
		resp, err := sqsClient.ReceiveMessage(recvCtx, &sqs.ReceiveMessageInput{
			QueueUrl:            &cfg.QueueURL,
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20, // enable long polling
			VisibilityTimeout:   60,
		})
		cancel()

		if err != nil {
			log.Printf("ReceiveMessage error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		if len(resp.Messages) == 0 {
			time.Sleep(2 * time.Second)
			continue
		}

		for _, m := range resp.Messages {
			if m.Body == nil {
				log.Printf("received message with empty body, skipping")
				continue
			}

			var notice models.DowngradeNotice
			if err := json.Unmarshal([]byte(*m.Body), &notice); err != nil {
				// Poison pill; delete to avoid infinite retries.
				log.Printf("failed to unmarshal downgrade notice: %v, body=%s", err, *m.Body)
				deleteMessage(sqsClient, cfg.QueueURL, m)
				continue
			}

			if err := app.SendDowngradeEmail(cfg, notice); err != nil {
				// Leave the message; it becomes visible again after the
				// visibility timeout and is retried.
				log.Printf("failed to send downgrade email to %s: %v", notice.Email, err)
				continue
			}

			deleteMessage(sqsClient, cfg.QueueURL, m)
		}
	}
}

func deleteMessage(sqsClient *sqs.Client, queueURL string, m sqstypes.Message) {
	if m.ReceiptHandle == nil {
		return
	}
	_, err := sqsClient.DeleteMessage(context.Background(), &sqs.DeleteMessageInput{
		QueueUrl:      &queueURL,
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		log.Printf("failed to delete SQS message: %v", err)
	}
}
