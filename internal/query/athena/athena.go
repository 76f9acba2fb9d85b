// Package athena adapts Amazon Athena to query.Service.
package athena

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"

	"github.com/loglens/loglens/internal/query"
)

// pageSize is the largest page GetQueryResults accepts.
const pageSize int32 = 1000

// Config selects the region and endpoint. AccessKeyID and SecretAccessKey are
// optional; without them the default AWS credential chain is used.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Workgroup       string
	// Endpoint overrides the regional endpoint, e.g. for a local emulator.
	Endpoint string
}

type api interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
	StopQueryExecution(ctx context.Context, params *athena.StopQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StopQueryExecutionOutput, error)
}

type Service struct {
	client    api
	workgroup string
}

func New(ctx context.Context, cfg Config) (*Service, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := athena.NewFromConfig(awsCfg, func(o *athena.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Service{client: client, workgroup: strings.TrimSpace(cfg.Workgroup)}, nil
}

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		return aws.Config{}, fmt.Errorf("athena region is required")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		return aws.Config{}, fmt.Errorf("athena credentials need both access key and secret key")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func NewWithClient(client api, workgroup string) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("athena client is required")
	}
	return &Service{client: client, workgroup: workgroup}, nil
}

func (s *Service) Submit(ctx context.Context, submission query.Submission) (string, error) {
	input := &athena.StartQueryExecutionInput{
		QueryString: aws.String(submission.SQL),
		QueryExecutionContext: &types.QueryExecutionContext{
			Database: aws.String(submission.Database),
		},
		ResultConfiguration: &types.ResultConfiguration{
			OutputLocation: aws.String(submission.OutputLocation),
		},
	}
	if s.workgroup != "" {
		input.WorkGroup = aws.String(s.workgroup)
	}
	out, err := s.client.StartQueryExecution(ctx, input)
	if err != nil {
		return "", fmt.Errorf("start query execution: %w", err)
	}
	if out.QueryExecutionId == nil || *out.QueryExecutionId == "" {
		return "", fmt.Errorf("start query execution: empty execution id")
	}
	return *out.QueryExecutionId, nil
}

func (s *Service) Status(ctx context.Context, jobID string) (query.Status, error) {
	out, err := s.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{QueryExecutionId: aws.String(jobID)})
	if err != nil {
		return query.Status{}, fmt.Errorf("get query execution: %w", err)
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return query.Status{}, fmt.Errorf("get query execution %s: missing status", jobID)
	}
	status := out.QueryExecution.Status
	return query.Status{
		State:  query.State(status.State),
		Reason: aws.ToString(status.StateChangeReason),
	}, nil
}

// Results concatenates every page. Athena repeats the column names as the
// first row of the first page only, which is the layout query.RawResult uses.
func (s *Service) Results(ctx context.Context, jobID string) (query.RawResult, error) {
	var result query.RawResult
	pages := athena.NewGetQueryResultsPaginator(s.client, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(jobID),
	}, func(o *athena.GetQueryResultsPaginatorOptions) {
		o.Limit = pageSize
	})
	for pages.HasMorePages() {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return query.RawResult{}, fmt.Errorf("get query results: %w", err)
		}
		if out.ResultSet == nil {
			continue
		}
		for _, row := range out.ResultSet.Rows {
			cells := make([]*string, len(row.Data))
			for i, datum := range row.Data {
				cells[i] = datum.VarCharValue
			}
			result.Rows = append(result.Rows, cells)
		}
	}
	return result, nil
}

func (s *Service) Cancel(ctx context.Context, jobID string) error {
	if _, err := s.client.StopQueryExecution(ctx, &athena.StopQueryExecutionInput{QueryExecutionId: aws.String(jobID)}); err != nil {
		return fmt.Errorf("stop query execution: %w", err)
	}
	return nil
}
