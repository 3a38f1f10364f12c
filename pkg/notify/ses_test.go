package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESPublisher_Publish(t *testing.T) {
	client := &fakeSES{}
	p, err := NewSESPublisher(client, SESConfig{
		From:       "sitemgmt@example.com",
		Recipients: []string{"ops@example.com", "security@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ses", p.Name())

	require.NoError(t, p.Publish(context.Background(), "Admin bob@example.com has been deleted"))

	require.Len(t, client.inputs, 1)
	in := client.inputs[0]
	assert.Equal(t, "sitemgmt@example.com", aws.ToString(in.Source))
	assert.Equal(t, []string{"ops@example.com", "security@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, DefaultSubject, aws.ToString(in.Message.Subject.Data))
	assert.Equal(t, "Admin bob@example.com has been deleted", aws.ToString(in.Message.Body.Text.Data))
	assert.Nil(t, in.Message.Body.Html)
}

func TestSESPublisher_Error(t *testing.T) {
	cause := errors.New("MessageRejected")
	p, err := NewSESPublisher(&fakeSES{err: cause}, SESConfig{From: "a@example.com", Recipients: []string{"b@example.com"}, Subject: "custom"})
	require.NoError(t, err)

	err = p.Publish(context.Background(), "msg")
	assert.ErrorIs(t, err, cause)
}

func TestNewSESPublisher_Validation(t *testing.T) {
	_, err := NewSESPublisher(&fakeSES{}, SESConfig{Recipients: []string{"b@example.com"}})
	assert.Error(t, err)

	_, err = NewSESPublisher(&fakeSES{}, SESConfig{From: "a@example.com"})
	assert.Error(t, err)
}

func TestNewSESClient_StaticCredentials(t *testing.T) {
	client, err := NewSESClient(context.Background(), SESConfig{
		Region:    "us-east-1",
		Endpoint:  "http://localhost:4566",
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", client.Options().Region)
	assert.Equal(t, "http://localhost:4566", aws.ToString(client.Options().BaseEndpoint))
}
