package mail

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type SES struct {
	Cli    *ses.Client
	Sender string
}

func (m *SES) Send(ctx context.Context, msg *Message) error {

	subject, body, err := Render(msg)
	if err != nil {
		return err
	}

	_, err = m.Cli.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(m.Sender),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	})

	return err

}

func (m *SES) SendConfirmation(ctx context.Context, to string, link string) error {
	return sendConfirmation(m, ctx, to, link)
}

func (m *SES) SendPasswordReset(ctx context.Context, to string, link string) error {
	return sendPasswordReset(m, ctx, to, link)
}
