package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	syslog "log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strconv"
	"syscall"
	"time"

	"github.com/autowar/autowar/api"
	"github.com/autowar/autowar/cmd/server"
	"github.com/autowar/autowar/pkg/credentials"
	"github.com/autowar/autowar/pkg/crypto"
	"github.com/autowar/autowar/pkg/evaluation"
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
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/ini.v1"
)

// LocalCommand configuration object
type LocalCommand struct {
	rootConfig *RootConfig
	out        io.Writer
	port       int
	dbFile     string
}

// NewLocalCommand creates a new ffcli.Command
func NewLocalCommand(rootConfig *RootConfig, out io.Writer) *ffcli.Command {
	cfg := LocalCommand{
		rootConfig: rootConfig,
		out:        out,
	}

	fs := flag.NewFlagSet("autowar local", flag.ExitOnError)
	fs.IntVar(&cfg.port, "p", 9090, "the local port to run the autowar server on")
	fs.StringVar(&cfg.dbFile, "db-file", "", "the BoltDB file to store evaluations in (defaults to ~/.autowar/autowar.db)")
	rootConfig.RegisterFlags(fs)

	return &ffcli.Command{
		Name:       "local",
		ShortUsage: "autowar local [flags]",
		ShortHelp:  "Run a local autowar server backed by an embedded database",
		FlagSet:    fs,
		Exec:       cfg.Exec,
	}
}

func (c *LocalCommand) log(a ...interface{}) {
	fmt.Fprintln(c.out, a...)
}

// Exec function for this command.
func (c *LocalCommand) Exec(ctx context.Context, _ []string) error {

	logProd, err := zap.NewProduction()
	if err != nil {
		return errors.Wrap(err, "can't initialize zap logger")
	}

	log := logProd.Sugar().With("ver", version)

	defer func() {
		err = log.Sync()
		if err != nil {
			syslog.Fatalf("error closing log: %v", err)
		}
	}()

	// autowar writes config to ~/.autowar.ini, to allow developers
	// to set consistent settings between different projects they work on
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	file := path.Join(home, ".autowar.ini")

	url := "http://localhost:" + strconv.Itoa(c.port)

	// local mode generates a fresh API key per run so the credential
	// routes are never exposed unauthenticated
	apiKey, err := crypto.GenerateRandomToken()
	if err != nil {
		return err
	}

	if _, err := os.Stat(file); err == nil {
		c.log("Loading your autowar config file (" + file + ")")
		cfgFile, err := ini.Load(file)
		if err != nil {
			return err
		}
		cfgFile.Section("autowar").Key("api_key").SetValue(apiKey)
		savedUrl := cfgFile.Section("autowar").Key("url")

		if savedUrl.String() != url {
			c.log("The URL in your config file (" + savedUrl.String() + ") was different to the URL your local autowar server will run on (" + url + "). Updating your config file URL to be " + url + "...")
			savedUrl.SetValue(url)
		}
		if err := cfgFile.SaveTo(file); err != nil {
			return err
		}

	} else if os.IsNotExist(err) {
		c.log(file + " does not exist - initialising new config")

		cfgFile := ini.Empty()
		cfgFile.Section("autowar").Key("api_key").SetValue(apiKey)
		cfgFile.Section("autowar").Key("url").SetValue(url)
		if err := cfgFile.SaveTo(file); err != nil {
			return err
		}

		c.log("A new API key has been generated for your autowar server. You can view the key and server URL settings at " + file)

	} else {
		// unknown error
		return err
	}

	// the embedded BoltDB backend keeps local mode free of external
	// database dependencies
	db, err := storage.OpenBoltDB(c.dbFile)
	if err != nil {
		return errors.Wrap(err, "opening bolt database")
	}
	store := storage.BuildBoltStorage(db)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "loading AWS config")
	}

	registry := validation.NewRegistry(log, validation.Clients{
		IAM:        iam.NewFromConfig(awsCfg),
		S3:         s3.NewFromConfig(awsCfg),
		CloudTrail: cloudtrail.NewFromConfig(awsCfg),
		Config:     configservice.NewFromConfig(awsCfg),
		EC2:        ec2.NewFromConfig(awsCfg),
		WAF:        wafv2.NewFromConfig(awsCfg),
	})

	// no queue in local mode; validators run synchronously on creation
	evaluations := evaluation.NewService(evaluation.ServiceOpts{
		Log:      log,
		Store:    store.Evaluations,
		Registry: registry,
	})

	registrar := credentials.NewRegistrar(credentials.RegistrarOpts{
		Log:     log,
		Store:   store.Credentials,
		STS:     sts.NewFromConfig(awsCfg),
		Secrets: secretsmanager.NewFromConfig(awsCfg),
	})

	scoreService := scores.NewService(scores.ServiceOpts{
		Log:   log,
		Store: store.Scores,
	})

	c.log("Running local version of autowar - the API can be accessed at " + url)

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
		APIKey: apiKey,
	}

	handler := server.API(&apiConfig)

	host := "127.0.0.1:" + strconv.Itoa(c.port)
	// set reasonable defaults here to avoid complexity exposing these as CLI args
	readTimeout := 5 * time.Second
	writeTimeout := 5 * time.Second
	shutdownTimeout := 5 * time.Second

	srv := http.Server{
		Addr:         host,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	log.With("host", host).Info("Starting server")

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
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Asking listener to shutdown and load shed.
		err := srv.Shutdown(ctx)
		if err != nil {
			log.Infof("main : Graceful shutdown did not complete in %v : %v", shutdownTimeout, err)
			return srv.Close()
		}
	}
	return err
}
