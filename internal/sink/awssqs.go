package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/txpipe/chainstream/internal/model"
)

// SQSAPI is the subset of the AWS SDK SQS client this sink needs.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// AWSSQS delivers each event as an SQS message body, one of the cloud
// queue sink family.
type AWSSQS struct {
	Client   SQSAPI
	QueueURL string
}

// NewAWSSQS resolves AWS credentials and region the standard SDK way (env
// vars, shared config/credentials files, EC2/ECS role) via
// aws-sdk-go-v2/config, optionally pinned to a static access key pair, and
// returns an AWSSQS ready to deliver to queueURL.
func NewAWSSQS(ctx context.Context, queueURL, region, accessKeyID, secretAccessKey string) (*AWSSQS, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sink/awssqs: load aws config: %w", err)
	}
	return &AWSSQS{Client: sqs.NewFromConfig(cfg), QueueURL: queueURL}, nil
}

func (s *AWSSQS) Deliver(ctx context.Context, event model.ChainEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sink/awssqs: marshal event: %w", err)
	}
	_, err = s.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.QueueURL),
		MessageBody: aws.String(string(raw)),
	})
	if err != nil {
		return fmt.Errorf("sink/awssqs: send message: %w", err)
	}
	return nil
}

func (s *AWSSQS) Close() error { return nil }
