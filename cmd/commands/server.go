package commands

import (
	"context"
	"flag"
	"io"
	syslog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/autowar/autowar/api"
	"github.com/autowar/autowar/cmd/server"
	"github.com/autowar/autowar/internal/middleware"
	"github.com/autowar/autowar/internal/tracing"
	"github.com/autowar/autowar/pkg/config"
	"github.com/autowar/autowar/pkg/credentials"
	"github.com/autowar/autowar/pkg/evaluation"
	"github.com/autowar/autowar/pkg/queue"
	"github.com/autowar/autowar/pkg/scores"
	"github.com/autowar/autowar/pkg/storage"
	"github.com/autowar/autowar/pkg/validation"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// overriden by build flags
var version string

// ServerCommand configuration object
type ServerCommand struct {
	RootConfig      *RootConfig
	Out             io.Writer
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	APIKey      string
	JWTIssuer   string
	JWTAudience string

	Region             string
	EvaluationQueueURL string
	SecretsPrefix      string

	StorageFactory *storage.Factory
	TracingFactory *tracing.TracingFactory
}

// NewServerCommand creates a new ffcli.Command
func NewServerCommand(rootConfig *RootConfig, out io.Writer) *ffcli.Command {
	cfg := ServerCommand{
		RootConfig:     rootConfig,
		Out:            out,
		StorageFactory: storage.NewFactory(),
		TracingFactory: tracing.NewFactory(),
	}

	fs := flag.NewFlagSet("autowar server", flag.ExitOnError)
	fs.StringVar(&cfg.Host, "host", "0.0.0.0:9090", "the server hostname to listen on (can be set via AUTOWAR_HOST env var)")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", 5*time.Second, "server read timeout duration (can be set via AUTOWAR_READ_TIMEOUT env var)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", 5*time.Second, "server write timeout duration (can be set via AUTOWAR_WRITE_TIMEOUT env var)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 5*time.Second, "server shutdown timeout duration (can be set via AUTOWAR_SHUTDOWN_TIMEOUT env var)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "pre-shared key guarding the credential routes (can be set via AUTOWAR_API_KEY env var)")
	fs.StringVar(&cfg.JWTIssuer, "jwt-issuer", "", "OIDC issuer URL for bearer token verification (can be set via AUTOWAR_JWT_ISSUER env var)")
	fs.StringVar(&cfg.JWTAudience, "jwt-audience", "", "expected audience claim for bearer tokens (can be set via AUTOWAR_JWT_AUDIENCE env var)")
	fs.StringVar(&cfg.Region, "region", "", "AWS region override for the service clients")
	fs.StringVar(&cfg.EvaluationQueueURL, "evaluation-queue-url", "", "SQS queue URL for evaluation work items (empty runs validators synchronously)")
	fs.StringVar(&cfg.SecretsPrefix, "secrets-prefix", "autowar", "the Secrets Manager name prefix for stored credentials")
	fs.String("config", "", "path to a .env config file")
	cfg.StorageFactory.AddFlags(fs)
	cfg.TracingFactory.AddFlags(fs)
	rootConfig.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       "server",
		ShortUsage: "autowar server [flags]",
		ShortHelp:  "Start the autowar API server",
		FlagSet:    fs,
		// allow setting environment variables or a .env file to configure
		// server settings
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
func (c *ServerCommand) Exec(ctx context.Context, _ []string) error {
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

	registry := validation.NewRegistry(log, validation.Clients{
		IAM:        iam.NewFromConfig(awsCfg),
		S3:         s3.NewFromConfig(awsCfg),
		CloudTrail: cloudtrail.NewFromConfig(awsCfg),
		Config:     configservice.NewFromConfig(awsCfg),
		EC2:        ec2.NewFromConfig(awsCfg),
		WAF:        wafv2.NewFromConfig(awsCfg),
	})

	var publisher queue.Publisher
	if c.EvaluationQueueURL != "" {
		publisher = queue.NewSQSPublisher(sqs.NewFromConfig(awsCfg), c.EvaluationQueueURL)
	} else {
		log.Info("no evaluation queue configured, validators run synchronously")
	}

	evaluations := evaluation.NewService(evaluation.ServiceOpts{
		Log:      log,
		Store:    store.Evaluations,
		Registry: registry,
		Queue:    publisher,
	})

	registrar := credentials.NewRegistrar(credentials.RegistrarOpts{
		Log:           log,
		Store:         store.Credentials,
		STS:           sts.NewFromConfig(awsCfg),
		Secrets:       secretsmanager.NewFromConfig(awsCfg),
		SecretsPrefix: c.SecretsPrefix,
	})

	scoreService := scores.NewService(scores.ServiceOpts{
		Log:   log,
		Store: store.Scores,
	})

	var jwtAuth *middleware.JWTAuthenticator
	if c.JWTIssuer != "" {
		jwtAuth = middleware.NewJWTAuthenticator(log, c.JWTIssuer, c.JWTAudience)
	} else {
		log.Warn("no JWT issuer configured, evaluation routes are unauthenticated")
	}
	if c.APIKey == "" {
		log.Warn("no API key configured, credential routes are unauthenticated")
	}

	// Start the application

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	apiConfig := server.APIConfig{
		Shutdown: shutdown,
		Log:      log,
		Handlers: &api.Handlers{
			Log:         log,
			Evaluations: evaluations,
			Evidence:    store.Evidence,
			Reports:     store.Reports,
			Registrar:   registrar,
			Credentials: store.Credentials,
			Scores:      scoreService,
			Clients:     store.Clients,
		},
		APIKey:         c.APIKey,
		JWT:            jwtAuth,
		TracingEnabled: c.TracingFactory.Enabled,
	}

	srv := http.Server{
		Addr:         c.Host,
		Handler:      server.API(&apiConfig),
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}

	log.With("host", c.Host).Info("Starting server")

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// Start the service listening for requests.
	go func() {
		log.Infof("main : API listening on %s", srv.Addr)
		serverErrors <- srv.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return errors.Wrap(err, "server error")

	case sig := <-shutdown:
		log.Infof("main : %v : Start shutdown", sig)

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
		defer cancel()

		// Asking listener to shutdown and load shed.
		err := srv.Shutdown(ctx)
		if err != nil {
			log.Infof("main : Graceful shutdown did not complete in %v : %v", c.ShutdownTimeout, err)
			return srv.Close()
		}
	}
	return err
}
