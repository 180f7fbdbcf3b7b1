package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"rental-digest/utils"
)

// SESAPI is the subset of the SES v2 client used to send raw email.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSink mails digests through Amazon SES as raw MIME so attachments survive.
type SESSink struct {
	client     SESAPI
	sender     string
	recipients []string
	logger     *utils.Logger
	now        func() time.Time
}

// NewSESSink creates an SES sink. sender and at least one recipient are required.
func NewSESSink(client SESAPI, sender string, recipients []string, logger *utils.Logger) (*SESSink, error) {
	if sender == "" {
		return nil, errors.New("ses: sender address is required")
	}
	if len(recipients) == 0 {
		return nil, errors.New("ses: at least one recipient is required")
	}
	return &SESSink{
		client:     client,
		sender:     sender,
		recipients: recipients,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *SESSink) Name() string { return "ses" }

func (s *SESSink) Send(ctx context.Context, msg Message) error {
	raw, err := BuildMIME(s.sender, s.recipients, msg, s.now())
	if err != nil {
		return fmt.Errorf("ses: build message: %w", err)
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.sender),
		Destination:      &types.Destination{ToAddresses: s.recipients},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw}},
	})
	if err != nil {
		return fmt.Errorf("ses: send: %w", err)
	}

	s.logger.Info("[notify] Digest sent to %v (message id %s)", s.recipients, aws.ToString(out.MessageId))
	return nil
}
