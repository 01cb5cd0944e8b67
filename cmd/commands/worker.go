package commands

import (
	"context"
	"flag"
	"io"

	"github.com/autowar/autowar/internal/tracing"
	"github.com/autowar/autowar/pkg/config"
	"github.com/autowar/autowar/pkg/evaluation"
	"github.com/autowar/autowar/pkg/queue"
	"github.com/autowar/autowar/pkg/reports"
	"github.com/autowar/autowar/pkg/service"
	"github.com/autowar/autowar/pkg/storage"
	"github.com/autowar/autowar/pkg/validation"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/pkg/errors"
)

// WorkerCommand configuration object
type WorkerCommand struct {
	RootConfig *RootConfig
	Out        io.Writer

	Region             string
	EvaluationQueueURL string
	ReportQueueURL     string
	ReportBucket       string
	RendererURL        string
	WorkerCount        int
	AdminPort          int

	StorageFactory *storage.Factory
	TracingFactory *tracing.TracingFactory
}

// NewWorkerCommand creates a new ffcli.Command
func NewWorkerCommand(rootConfig *RootConfig, out io.Writer) *ffcli.Command {
	cfg := WorkerCommand{
		RootConfig:     rootConfig,
		Out:            out,
		StorageFactory: storage.NewFactory(),
		TracingFactory: tracing.NewFactory(),
	}

	fs := flag.NewFlagSet("autowar worker", flag.ExitOnError)
	fs.StringVar(&cfg.Region, "region", "", "AWS region override for the service clients")
	fs.StringVar(&cfg.EvaluationQueueURL, "evaluation-queue-url", "", "SQS queue URL for evaluation work items")
	fs.StringVar(&cfg.ReportQueueURL, "report-queue-url", "", "SQS queue URL for report jobs (empty disables report generation)")
	fs.StringVar(&cfg.ReportBucket, "report-bucket", "", "S3 bucket for rendered report artifacts")
	fs.StringVar(&cfg.RendererURL, "renderer-url", "", "URL of the external report renderer (empty stores the JSON payload directly)")
	fs.IntVar(&cfg.WorkerCount, "worker-count", 10, "number of concurrent queue workers per queue")
	fs.IntVar(&cfg.AdminPort, "admin-port", 10866, "the port to serve the admin healthcheck endpoints on")
	fs.String("config", "", "path to a .env config file")
	cfg.StorageFactory.AddFlags(fs)
	cfg.TracingFactory.AddFlags(fs)
	rootConfig.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       "worker",
		ShortUsage: "autowar worker [flags]",
		ShortHelp:  "Run the evaluation and report workers",
		FlagSet:    fs,
		// allow setting environment variables or a .env file to configure
		// worker settings
		Options: []ff.Option{
			ff.WithEnvVarPrefix("AUTOWAR"),
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(config.EnvFileParser("AUTOWAR")),
			ff.WithAllowMissingConfigFile(true),
		},
		Exec: cfg.Exec,
	}
}

// Exec function for this command.
func (c *WorkerCommand) Exec(ctx context.Context, _ []string) error {
	if c.EvaluationQueueURL == "" {
		return errors.New("AUTOWAR_EVALUATION_QUEUE_URL must be provided")
	}

	svc := service.NewService(c.AdminPort)
	if err := svc.Start(); err != nil {
		return err
	}
	log := svc.Logger

	if _, err := c.TracingFactory.InitializeTracer(ctx); err != nil {
		return err
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{}
	if c.Region != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(c.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return errors.Wrap(err, "loading AWS config")
	}

	store, err := c.StorageFactory.GetStorage(awsCfg)
	if err != nil {
		return err
	}

	registry := validation.NewRegistry(log, validation.Clients{
		IAM:        iam.NewFromConfig(awsCfg),
		S3:         s3.NewFromConfig(awsCfg),
		CloudTrail: cloudtrail.NewFromConfig(awsCfg),
		Config:     configservice.NewFromConfig(awsCfg),
		EC2:        ec2.NewFromConfig(awsCfg),
		WAF:        wafv2.NewFromConfig(awsCfg),
	})

	sqsClient := sqs.NewFromConfig(awsCfg)

	var reportQueue queue.Publisher
	if c.ReportQueueURL != "" {
		reportQueue = queue.NewSQSPublisher(sqsClient, c.ReportQueueURL)
	}

	worker := evaluation.NewWorker(evaluation.WorkerOpts{
		Log:         log,
		Store:       store.Evaluations,
		Evidence:    store.Evidence,
		Reports:     store.Reports,
		Registry:    registry,
		ReportQueue: reportQueue,
	})

	evalServer := queue.NewServer(&queue.ServerConfig{
		Log:         log,
		Client:      sqsClient,
		QueueURL:    c.EvaluationQueueURL,
		WorkerCount: c.WorkerCount,
		Handler:     worker.HandleSQSMessage,
	})
	evalServer.Start(ctx)
	log.With("queue", c.EvaluationQueueURL).Info("polling evaluation queue")

	var reportServer *queue.Server
	if c.ReportQueueURL != "" {
		var renderer reports.Renderer
		if c.RendererURL != "" {
			renderer = reports.NewHTTPRenderer(c.RendererURL, nil)
		}
		generator := reports.NewGenerator(reports.GeneratorOpts{
			Log:       log,
			Evals:     store.Evaluations,
			Store:     store.Reports,
			Artifacts: reports.NewS3ArtifactStore(s3.NewFromConfig(awsCfg), c.ReportBucket),
			Renderer:  renderer,
		})

		reportServer = queue.NewServer(&queue.ServerConfig{
			Log:         log,
			Client:      sqsClient,
			QueueURL:    c.ReportQueueURL,
			WorkerCount: c.WorkerCount,
			Handler:     generator.HandleSQSMessage,
		})
		reportServer.Start(ctx)
		log.With("queue", c.ReportQueueURL).Info("polling report queue")
	}

	svc.RunAndThen(func() {
		evalServer.Shutdown()
		if reportServer != nil {
			reportServer.Shutdown()
		}
	})
	return nil
}
