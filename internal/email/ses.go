package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESSender sends notification emails via AWS SES v2.
type SESSender struct {
	fromAddress string
	client      *sesv2.Client
}

// NewSESSender builds an SES sender. If accessKey/secretKey are empty the
// returned sender has no client and every Send call fails closed.
func NewSESSender(accessKey, secretKey, region, fromAddress string) *SESSender {
	if region == "" {
		region = "us-east-1"
	}

	sender := &SESSender{fromAddress: fromAddress}

	if accessKey != "" && secretKey != "" {
		cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		)
		if err != nil {
			slog.Error("failed to initialize AWS config for SES", "error", err)
		} else {
			sender.client = sesv2.NewFromConfig(cfg)
		}
	}

	return sender
}

// Send delivers one HTML email through SES, returning false on any failure
// instead of propagating an error — a bad send should never abort a poll job.
func (s *SESSender) Send(ctx context.Context, toEmail, subject, htmlBody string) bool {
	if s.client == nil {
		slog.Error("SES client not initialized, skipping send", "to", toEmail)
		return false
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.fromAddress),
		Destination:      &types.Destination{ToAddresses: []string{toEmail}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	_, err := s.client.SendEmail(ctx, input)
	if err != nil {
		slog.Error("SES send failed", "to", toEmail, "error", fmt.Errorf("send email: %w", err))
		return false
	}
	return true
}
