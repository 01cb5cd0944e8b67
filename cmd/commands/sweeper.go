package commands

import (
	"context"
	"flag"
	"io"
	syslog "log"
	"os/signal"
	"syscall"
	"time"

	"github.com/autowar/autowar/internal/tracing"
	"github.com/autowar/autowar/pkg/config"
	"github.com/autowar/autowar/pkg/credentials"
	"github.com/autowar/autowar/pkg/storage"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SweeperCommand configuration object
type SweeperCommand struct {
	RootConfig *RootConfig
	Out        io.Writer

	Region      string
	Interval    time.Duration
	SNSTopicARN string

	StorageFactory *storage.Factory
	TracingFactory *tracing.TracingFactory
}

// NewSweeperCommand creates a new ffcli.Command
func NewSweeperCommand(rootConfig *RootConfig, out io.Writer) *ffcli.Command {
	cfg := SweeperCommand{
		RootConfig:     rootConfig,
		Out:            out,
		StorageFactory: storage.NewFactory(),
		TracingFactory: tracing.NewFactory(),
	}

	fs := flag.NewFlagSet("autowar sweeper", flag.ExitOnError)
	fs.StringVar(&cfg.Region, "region", "", "AWS region override for the service clients")
	fs.DurationVar(&cfg.Interval, "interval", 0, "how often to sweep credential records (zero sweeps once and exits)")
	fs.StringVar(&cfg.SNSTopicARN, "sns-topic-arn", "", "SNS topic ARN for rotation failure alerts (empty disables alerting)")
	fs.String("config", "", "path to a .env config file")
	cfg.StorageFactory.AddFlags(fs)
	cfg.TracingFactory.AddFlags(fs)
	rootConfig.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       "sweeper",
		ShortUsage: "autowar sweeper [flags]",
		ShortHelp:  "Expire and rotate stored credentials",
		FlagSet:    fs,
		// allow setting environment variables or a .env file to configure
		// sweeper settings
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
func (c *SweeperCommand) Exec(ctx context.Context, _ []string) error {
	logProd, err := zap.NewProduction()
	if err != nil {
		syslog.Fatalf("can't initialize zap logger: %v", err)
	}
	log := logProd.Sugar().With("ver", version)

	defer func() {
		err = log.Sync()
	}()

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

	var notifier credentials.Notifier
	if c.SNSTopicARN != "" {
		notifier = credentials.NewSNSNotifier(sns.NewFromConfig(awsCfg), c.SNSTopicARN)
	}

	sweeper := credentials.NewSweeper(credentials.SweeperOpts{
		Log:      log,
		Store:    store.Credentials,
		Secrets:  secretsmanager.NewFromConfig(awsCfg),
		IAM:      iam.NewFromConfig(awsCfg),
		STS:      sts.NewFromConfig(awsCfg),
		Notifier: notifier,
	})

	sweep := func(ctx context.Context) error {
		counts, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		log.With("expired", counts.ExpiredDeleted, "rotationMarked", counts.RotationMarked).Info("sweep finished")
		return nil
	}

	if c.Interval == 0 {
		return sweep(ctx)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.With("interval", c.Interval).Info("sweeping on an interval")
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		if err := sweep(ctx); err != nil {
			// a failed sweep is retried on the next tick
			log.With(zap.Error(err)).Error("sweep failed")
		}
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}
