package email_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/aws/aws-sdk-go/service/ses/sesiface"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/curator/internal/channels/email"
	"github.com/jonesrussell/curator/internal/domain"
	"github.com/jonesrussell/curator/internal/logger"
)

type stubSES struct {
	sesiface.SESAPI

	inputs []*ses.SendEmailInput
	err    error
}

func (s *stubSES) SendEmailWithContext(_ aws.Context, input *ses.SendEmailInput, _ ...request.Option) (*ses.SendEmailOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.inputs = append(s.inputs, input)
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func entry(title string) domain.OutboxEntry {
	return domain.OutboxEntry{
		ID:           uuid.NewString(),
		ContentID:    uuid.New(),
		Organisation: "opsmatters",
		SiteID:       "devops-daily",
		ContentType:  domain.ContentTypePost,
		Title:        title,
		Summary:      "A summary",
		URL:          "https://example.com/post",
	}
}

func TestSender_Publish(t *testing.T) {
	stub := &stubSES{}
	sender := email.NewSenderWithClient(stub, "alerts@opsmatters.com",
		[]string{"team@opsmatters.com"}, logger.NewNop())

	e := entry("Kubernetes 1.30 Released")
	require.NoError(t, sender.Publish(context.Background(), &e))

	require.Len(t, stub.inputs, 1)
	input := stub.inputs[0]
	assert.Equal(t, "alerts@opsmatters.com", aws.StringValue(input.Source))
	assert.Len(t, input.Destination.ToAddresses, 1)
	assert.Contains(t, aws.StringValue(input.Message.Subject.Data), "Kubernetes 1.30 Released")
	assert.Contains(t, aws.StringValue(input.Message.Body.Html.Data), "https://example.com/post")
}

func TestSender_SendDigest(t *testing.T) {
	stub := &stubSES{}
	sender := email.NewSenderWithClient(stub, "alerts@opsmatters.com",
		[]string{"team@opsmatters.com"}, logger.NewNop())

	entries := []domain.OutboxEntry{entry("First"), entry("Second")}
	require.NoError(t, sender.SendDigest(context.Background(), "devops-daily", entries))

	require.Len(t, stub.inputs, 1)
	body := aws.StringValue(stub.inputs[0].Message.Body.Html.Data)
	assert.Contains(t, body, "First")
	assert.Contains(t, body, "Second")
	assert.Contains(t, aws.StringValue(stub.inputs[0].Message.Subject.Data), "2 new items")
}

func TestSender_SendDigest_Empty(t *testing.T) {
	stub := &stubSES{}
	sender := email.NewSenderWithClient(stub, "alerts@opsmatters.com",
		[]string{"team@opsmatters.com"}, logger.NewNop())

	require.NoError(t, sender.SendDigest(context.Background(), "devops-daily", nil))
	assert.Empty(t, stub.inputs, "no email for an empty digest")
}

func TestSender_Publish_SESError(t *testing.T) {
	stub := &stubSES{err: errors.New("throttled")}
	sender := email.NewSenderWithClient(stub, "alerts@opsmatters.com",
		[]string{"team@opsmatters.com"}, logger.NewNop())

	e := entry("Anything")
	assert.Error(t, sender.Publish(context.Background(), &e))
}

func TestSender_EscapesHTML(t *testing.T) {
	stub := &stubSES{}
	sender := email.NewSenderWithClient(stub, "alerts@opsmatters.com",
		[]string{"team@opsmatters.com"}, logger.NewNop())

	e := entry(`<script>alert("x")</script>`)
	require.NoError(t, sender.Publish(context.Background(), &e))

	body := aws.StringValue(stub.inputs[0].Message.Body.Html.Data)
	assert.NotContains(t, body, "<script>")
}
