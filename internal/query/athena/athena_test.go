package athena

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"

	"github.com/loglens/loglens/internal/query"
)

type fakeAPI struct {
	startInput  *athena.StartQueryExecutionInput
	startErr    error
	execution   *types.QueryExecution
	pages       []*athena.GetQueryResultsOutput
	resultCalls []*athena.GetQueryResultsInput
	stopped     []string
}

func (f *fakeAPI) StartQueryExecution(_ context.Context, params *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	f.startInput = params
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("qe-1")}, nil
}

func (f *fakeAPI) GetQueryExecution(_ context.Context, _ *athena.GetQueryExecutionInput, _ ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	return &athena.GetQueryExecutionOutput{QueryExecution: f.execution}, nil
}

func (f *fakeAPI) GetQueryResults(_ context.Context, params *athena.GetQueryResultsInput, _ ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error) {
	f.resultCalls = append(f.resultCalls, params)
	return f.pages[len(f.resultCalls)-1], nil
}

func (f *fakeAPI) StopQueryExecution(_ context.Context, params *athena.StopQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StopQueryExecutionOutput, error) {
	f.stopped = append(f.stopped, aws.ToString(params.QueryExecutionId))
	return &athena.StopQueryExecutionOutput{}, nil
}

func TestSubmitPassesDatabaseOutputAndWorkgroup(t *testing.T) {
	fake := &fakeAPI{}
	service, err := NewWithClient(fake, "analytics")
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	jobID, err := service.Submit(context.Background(), query.Submission{
		SQL:            "SELECT 1",
		Database:       "loglens",
		OutputLocation: "s3://loglens/athena-results/",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if jobID != "qe-1" {
		t.Fatalf("jobID = %q", jobID)
	}
	in := fake.startInput
	if aws.ToString(in.QueryString) != "SELECT 1" ||
		aws.ToString(in.QueryExecutionContext.Database) != "loglens" ||
		aws.ToString(in.ResultConfiguration.OutputLocation) != "s3://loglens/athena-results/" ||
		aws.ToString(in.WorkGroup) != "analytics" {
		t.Fatalf("input = %+v", in)
	}
}

func TestSubmitWrapsClientError(t *testing.T) {
	boom := errors.New("access denied")
	service, _ := NewWithClient(&fakeAPI{startErr: boom}, "")
	if _, err := service.Submit(context.Background(), query.Submission{SQL: "SELECT 1"}); !errors.Is(err, boom) {
		t.Fatalf("Submit() error = %v", err)
	}
}

func TestStatusMapsStateAndReason(t *testing.T) {
	fake := &fakeAPI{execution: &types.QueryExecution{Status: &types.QueryExecutionStatus{
		State:             types.QueryExecutionStateFailed,
		StateChangeReason: aws.String("SYNTAX_ERROR: line 1:8"),
	}}}
	service, _ := NewWithClient(fake, "")

	status, err := service.Status(context.Background(), "qe-1")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.State != query.StateFailed || status.Reason != "SYNTAX_ERROR: line 1:8" {
		t.Fatalf("status = %+v", status)
	}
}

func TestStatusWithoutExecution(t *testing.T) {
	service, _ := NewWithClient(&fakeAPI{}, "")
	if _, err := service.Status(context.Background(), "qe-1"); err == nil {
		t.Fatal("expected error for missing status")
	}
}

func TestResultsFollowsNextToken(t *testing.T) {
	fake := &fakeAPI{pages: []*athena.GetQueryResultsOutput{
		{
			ResultSet: &types.ResultSet{Rows: []types.Row{
				{Data: []types.Datum{{VarCharValue: aws.String("id")}, {VarCharValue: aws.String("count")}}},
				{Data: []types.Datum{{VarCharValue: aws.String("E2001")}, {VarCharValue: aws.String("5")}}},
			}},
			NextToken: aws.String("page-2"),
		},
		{
			ResultSet: &types.ResultSet{Rows: []types.Row{
				{Data: []types.Datum{{}, {VarCharValue: aws.String("3")}}},
			}},
		},
	}}
	service, _ := NewWithClient(fake, "")

	result, err := service.Results(context.Background(), "qe-1")
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[2][0] != nil || *result.Rows[2][1] != "3" {
		t.Fatalf("last row = %v", result.Rows[2])
	}
	if len(fake.resultCalls) != 2 || aws.ToString(fake.resultCalls[1].NextToken) != "page-2" {
		t.Fatalf("result calls = %d", len(fake.resultCalls))
	}
	if aws.ToInt32(fake.resultCalls[0].MaxResults) != pageSize {
		t.Fatalf("MaxResults = %v, want %d", fake.resultCalls[0].MaxResults, pageSize)
	}
}

func TestCancelStopsExecution(t *testing.T) {
	fake := &fakeAPI{}
	service, _ := NewWithClient(fake, "")
	if err := service.Cancel(context.Background(), "qe-9"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if len(fake.stopped) != 1 || fake.stopped[0] != "qe-9" {
		t.Fatalf("stopped = %v", fake.stopped)
	}
}

func isolateAWSEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_SESSION_TOKEN", "")
}

func TestNewValidatesRegionAndKeyPair(t *testing.T) {
	isolateAWSEnv(t)
	ctx := context.Background()

	if _, err := New(ctx, Config{AccessKeyID: "a", SecretAccessKey: "b"}); err == nil {
		t.Fatal("expected region error")
	}
	if _, err := New(ctx, Config{Region: "eu-north-1", AccessKeyID: "a"}); err == nil {
		t.Fatal("expected error for access key without secret")
	}
	if _, err := New(ctx, Config{Region: "eu-north-1", AccessKeyID: "a", SecretAccessKey: "b"}); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := New(ctx, Config{Region: "eu-north-1"}); err != nil {
		t.Fatalf("New() without keys error = %v", err)
	}
}

func TestLoadAWSConfigPrefersStaticKeys(t *testing.T) {
	isolateAWSEnv(t)
	t.Setenv("AWS_ACCESS_KEY_ID", "env-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "env-secret")
	ctx := context.Background()

	awsCfg, err := loadAWSConfig(ctx, Config{Region: " eu-north-1 ", AccessKeyID: "static-key", SecretAccessKey: "static-secret"})
	if err != nil {
		t.Fatalf("loadAWSConfig() error = %v", err)
	}
	if awsCfg.Region != "eu-north-1" {
		t.Fatalf("Region = %q", awsCfg.Region)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if creds.AccessKeyID != "static-key" {
		t.Fatalf("AccessKeyID = %q, want static-key", creds.AccessKeyID)
	}
}

func TestLoadAWSConfigFallsBackToDefaultChain(t *testing.T) {
	isolateAWSEnv(t)
	t.Setenv("AWS_ACCESS_KEY_ID", "env-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "env-secret")
	ctx := context.Background()

	awsCfg, err := loadAWSConfig(ctx, Config{Region: "eu-north-1"})
	if err != nil {
		t.Fatalf("loadAWSConfig() error = %v", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if creds.AccessKeyID != "env-key" {
		t.Fatalf("AccessKeyID = %q, want env-key", creds.AccessKeyID)
	}
}
