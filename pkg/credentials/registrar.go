package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultSessionDuration is the assume-role session length used when a
// record does not specify one.
const DefaultSessionDuration = 3600

// stsForKeys builds an STS client bound to caller-supplied static keys so
// they can be validated before registration. Tests replace it.
var stsForKeys = func(ctx context.Context, accessKeyID, secretAccessKey, sessionToken, region string) (STSAPI, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken),
		),
	}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return sts.NewFromConfig(cfg), nil
}

// Registrar validates and stores delegated credentials.
type Registrar struct {
	log           *zap.SugaredLogger
	store         Storage
	sts           STSAPI
	secrets       SecretsAPI
	secretsPrefix string
	now           func() time.Time
}

type RegistrarOpts struct {
	Log     *zap.SugaredLogger
	Store   Storage
	STS     STSAPI
	Secrets SecretsAPI
	// SecretsPrefix namespaces created secrets; defaults to "autowar".
	SecretsPrefix string
	Now           func() time.Time
}

func NewRegistrar(opts RegistrarOpts) *Registrar {
	prefix := opts.SecretsPrefix
	if prefix == "" {
		prefix = "autowar"
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registrar{
		log:           opts.Log,
		store:         opts.Store,
		sts:           opts.STS,
		secrets:       opts.Secrets,
		secretsPrefix: prefix,
		now:           now,
	}
}

// RegisterRoleInput registers an assumable-role credential.
type RegisterRoleInput struct {
	ClientID             string
	RoleARN              string
	ExternalID           string
	DurationSeconds      int32
	RotationIntervalDays int
}

// RegisterRole assumes the role once to prove it is assumable, then stores
// an active record whose expiry tracks the session.
func (r *Registrar) RegisterRole(ctx context.Context, input RegisterRoleInput) (*Record, error) {
	duration := input.DurationSeconds
	if duration == 0 {
		duration = DefaultSessionDuration
	}

	assumeInput := &sts.AssumeRoleInput{
		RoleArn:         aws.String(input.RoleARN),
		RoleSessionName: aws.String(fmt.Sprintf("autowar-%s", uuid.NewString())),
		DurationSeconds: aws.Int32(duration),
	}
	if input.ExternalID != "" {
		assumeInput.ExternalId = aws.String(input.ExternalID)
	}
	out, err := r.sts.AssumeRole(ctx, assumeInput)
	if err != nil {
		return nil, errors.Wrap(err, "assuming role")
	}

	now := r.now().Unix()
	rec := Record{
		ID:                   uuid.NewString(),
		ClientID:             input.ClientID,
		Type:                 "role",
		Kind:                 KindAssumableRole,
		Status:               StatusActive,
		RoleARN:              input.RoleARN,
		ExternalID:           input.ExternalID,
		DurationSeconds:      duration,
		RotationIntervalDays: input.RotationIntervalDays,
		LastRotatedTS:        now,
		CreatedAt:            now,
	}
	if out.AssumedRoleUser != nil {
		rec.CallerIdentity = aws.ToString(out.AssumedRoleUser.Arn)
	}
	if out.Credentials != nil && out.Credentials.Expiration != nil {
		rec.ExpiryTS = out.Credentials.Expiration.Unix()
	}

	if err := r.store.Put(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "persisting credential record")
	}
	return &rec, nil
}

// RegisterKeysInput registers a static access key credential.
type RegisterKeysInput struct {
	ClientID        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Region          string
	// IAMUser names the key owner; required for automatic rotation.
	IAMUser              string
	SaveSecret           bool
	RotationIntervalDays int
}

// RegisterKeys validates the supplied keys against the identity provider
// and, when requested, stores them in the secret store. Records without a
// stored secret cannot be auto-rotated.
func (r *Registrar) RegisterKeys(ctx context.Context, input RegisterKeysInput) (*Record, error) {
	keyClient, err := stsForKeys(ctx, input.AccessKeyID, input.SecretAccessKey, input.SessionToken, input.Region)
	if err != nil {
		return nil, errors.Wrap(err, "building STS client for supplied keys")
	}
	identity, err := keyClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, errors.Wrap(err, "validating supplied keys")
	}

	now := r.now().Unix()
	rec := Record{
		ID:                   uuid.NewString(),
		ClientID:             input.ClientID,
		Type:                 "keys",
		Kind:                 KindUnmanaged,
		Status:               StatusActive,
		IAMUser:              input.IAMUser,
		CallerIdentity:       aws.ToString(identity.Arn),
		RotationIntervalDays: input.RotationIntervalDays,
		LastRotatedTS:        now,
		CreatedAt:            now,
	}

	if input.SaveSecret {
		arn, err := r.storeSecret(ctx, input, rec.ID)
		if err != nil {
			return nil, errors.Wrap(err, "storing secret")
		}
		rec.SecretARN = arn
		rec.Kind = KindStaticSecret
	}

	if err := r.store.Put(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "persisting credential record")
	}
	return &rec, nil
}

func (r *Registrar) storeSecret(ctx context.Context, input RegisterKeysInput, credID string) (string, error) {
	name := fmt.Sprintf("%s/%s/%s", r.secretsPrefix, input.ClientID, credID)

	value := map[string]interface{}{
		"accessKeyId":     input.AccessKeyID,
		"secretAccessKey": input.SecretAccessKey,
	}
	if input.SessionToken != "" {
		value["sessionToken"] = input.SessionToken
	}
	if input.IAMUser != "" {
		value["iamUser"] = input.IAMUser
	}
	body, err := json.Marshal(value)
	if err != nil {
		return "", errors.Wrap(err, "marshalling secret value")
	}

	created, err := r.secrets.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(string(body)),
	})
	if err == nil {
		return aws.ToString(created.ARN), nil
	}

	var exists *smtypes.ResourceExistsException
	if !errors.As(err, &exists) {
		return "", err
	}

	// the secret already exists, put a new value and resolve its ARN
	if _, err := r.secrets.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(string(body)),
	}); err != nil {
		return "", err
	}
	desc, err := r.secrets.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(name)})
	if err != nil {
		return "", err
	}
	return aws.ToString(desc.ARN), nil
}
