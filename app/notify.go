package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/huddleeco-commits/solevault-backend-sub001/app/config"
	"github.com/huddleeco-commits/solevault-backend-sub001/app/models"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// dispatchDowngradeNotice hands the notice to the notify queue when one is
// configured, otherwise sends the email inline. Best effort either way: the
// tier downgrade has already committed and must not be blocked or reversed
// by a notification problem.
func dispatchDowngradeNotice(ctx context.Context, notice models.DowngradeNotice) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("downgrade notice config load failed: %v", err)
		return
	}

	if cfg.QueueURL == "" {
		if err := SendDowngradeEmail(cfg, notice); err != nil {
			log.Printf("downgrade email failed for %s: %v", notice.Email, err)
		}
		return
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("failed to load AWS config for SQS: %v", err)
		return
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	body, err := json.Marshal(notice)
	if err != nil {
		log.Printf("failed to marshal downgrade notice for %s: %v", notice.Email, err)
		return
	}

	_, err = sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &cfg.QueueURL,
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		log.Printf("failed to enqueue downgrade notice for %s: %v", notice.Email, err)
	}
}

// SendDowngradeEmail delivers the downgrade notification through SendGrid.
// Called inline when no queue is configured and by the notify worker.
func SendDowngradeEmail(cfg *config.Config, notice models.DowngradeNotice) error {
	if cfg.Email.SendGridAPIKey == "" || cfg.Email.FromAddress == "" {
		log.Printf("Missing SendGrid config, skipping downgrade email")
		return nil
	}

	name := notice.Name
	if name == "" {
		name = "there"
	}

	subject := "Your SoleVault subscription has ended"
	plainTextContent := fmt.Sprintf(`Hi %s,

Your %s subscription is no longer active (%s), so your account has moved to
the free plan. Your cards and showcases are safe, but free-plan limits now
apply to scans and listings.

You can resubscribe any time from your billing settings.

- The SoleVault team`,
		name,
		notice.PreviousTier,
		notice.Reason,
	)

	from := mail.NewEmail(cfg.Email.FromName, cfg.Email.FromAddress)
	to := mail.NewEmail(name, notice.Email)
	message := mail.NewSingleEmail(from, subject, to, plainTextContent, "")

	client := sendgrid.NewSendClient(cfg.Email.SendGridAPIKey)
	resp, err := client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}

	log.Printf("downgrade email sent to %s", notice.Email)
	return nil
}
