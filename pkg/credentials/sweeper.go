package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultRemediationTimeout bounds each per-record remediation so one stuck
// external call cannot stall the whole sweep.
const DefaultRemediationTimeout = 30 * time.Second

// maxAccessKeysKept is how many access keys survive pruning after a
// static-secret rotation.
const maxAccessKeysKept = 2

// SweepCounts aggregates one sweep invocation's outcomes.
type SweepCounts struct {
	ExpiredDeleted int `json:"expiredDeleted"`
	RotationMarked int `json:"rotationMarked"`
}

// Sweeper walks every credential record, expires those past their expiry
// timestamp and rotates those past their rotation interval.
type Sweeper struct {
	log      *zap.SugaredLogger
	store    Storage
	secrets  SecretsAPI
	iam      IAMKeysAPI
	sts      STSAPI
	notifier Notifier // nil when no alert channel is configured
	timeout  time.Duration
	now      func() time.Time
}

type SweeperOpts struct {
	Log      *zap.SugaredLogger
	Store    Storage
	Secrets  SecretsAPI
	IAM      IAMKeysAPI
	STS      STSAPI
	Notifier Notifier
	Timeout  time.Duration
	Now      func() time.Time
}

func NewSweeper(opts SweeperOpts) *Sweeper {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultRemediationTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		log:      opts.Log,
		store:    opts.Store,
		secrets:  opts.Secrets,
		iam:      opts.IAM,
		sts:      opts.STS,
		notifier: opts.Notifier,
		timeout:  timeout,
		now:      now,
	}
}

// Sweep processes every stored credential record exactly once. Expiry takes
// priority over rotation: a record past both its expiry and its rotation
// interval is expired, never rotated. No single record's failure aborts the
// sweep.
func (s *Sweeper) Sweep(ctx context.Context) (SweepCounts, error) {
	counts := SweepCounts{}

	records, err := s.store.List(ctx)
	if err != nil {
		return counts, errors.Wrap(err, "listing credential records")
	}

	for i := range records {
		rec := records[i]
		now := s.now()

		if rec.IsExpired(now) {
			s.expire(ctx, rec, now)
			counts.ExpiredDeleted++
			continue
		}

		if !rec.NeedsRotation(now) {
			continue
		}

		switch rec.ResolveKind() {
		case KindStaticSecret:
			if err := s.withTimeout(ctx, func(ctx context.Context) error {
				return s.rotateStaticSecret(ctx, rec, now)
			}); err != nil {
				s.flagAndAlert(ctx, rec, now, err)
			}
		case KindAssumableRole:
			if err := s.withTimeout(ctx, func(ctx context.Context) error {
				return s.refreshSession(ctx, rec, now)
			}); err != nil {
				s.flagAndAlert(ctx, rec, now, err)
			}
		default:
			// nothing to rotate automatically; flag for manual action
			// without alerting
			if err := s.store.MarkRotationDue(ctx, rec.ID, now.Unix()); err != nil {
				s.log.With("credential", rec.ID, zap.Error(err)).Error("flagging unmanaged record failed")
			}
		}
		counts.RotationMarked++
	}

	return counts, nil
}

func (s *Sweeper) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

// expire deletes the record's secret (best-effort) and marks it expired.
func (s *Sweeper) expire(ctx context.Context, rec Record, now time.Time) {
	if rec.SecretARN != "" {
		_, err := s.secrets.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
			SecretId:                   aws.String(rec.SecretARN),
			ForceDeleteWithoutRecovery: aws.Bool(true),
		})
		if err != nil {
			s.log.With("credential", rec.ID, zap.Error(err)).Warn("deleting secret for expired record failed")
		}
	}
	if err := s.store.MarkExpired(ctx, rec.ID, now.Unix()); err != nil {
		s.log.With("credential", rec.ID, zap.Error(err)).Error("marking record expired failed")
	}
}

// rotateStaticSecret issues a new access key for the secret's IAM user,
// writes the new key pair back into the secret preserving its other fields,
// and prunes old keys down to the most recent two.
func (s *Sweeper) rotateStaticSecret(ctx context.Context, rec Record, now time.Time) error {
	out, err := s.secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(rec.SecretARN),
	})
	if err != nil {
		return errors.Wrap(err, "fetching secret")
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return errors.New("secret has no string value")
	}

	var value map[string]interface{}
	if err := json.Unmarshal([]byte(*out.SecretString), &value); err != nil {
		return errors.Wrap(err, "parsing secret value")
	}
	iamUser, _ := value["iamUser"].(string)
	if iamUser == "" {
		return errors.New("secret missing iamUser, cannot rotate automatically")
	}

	created, err := s.iam.CreateAccessKey(ctx, &iam.CreateAccessKeyInput{
		UserName: aws.String(iamUser),
	})
	if err != nil {
		return errors.Wrap(err, "creating access key")
	}

	value["accessKeyId"] = aws.ToString(created.AccessKey.AccessKeyId)
	value["secretAccessKey"] = aws.ToString(created.AccessKey.SecretAccessKey)
	body, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshalling rotated secret")
	}
	if _, err := s.secrets.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(rec.SecretARN),
		SecretString: aws.String(string(body)),
	}); err != nil {
		return errors.Wrap(err, "updating secret")
	}

	if err := s.store.MarkRotated(ctx, rec.ID, now.Unix()); err != nil {
		return errors.Wrap(err, "recording rotation")
	}

	// pruning must never affect rotation success
	s.pruneAccessKeys(ctx, rec.ID, iamUser)

	s.log.With("credential", rec.ID, "iamUser", iamUser).Info("rotated static secret")
	return nil
}

// pruneAccessKeys removes a user's oldest access keys, keeping the two most
// recent by creation time. Every failure here is logged and swallowed.
func (s *Sweeper) pruneAccessKeys(ctx context.Context, recID, iamUser string) {
	keys, err := s.iam.ListAccessKeys(ctx, &iam.ListAccessKeysInput{UserName: aws.String(iamUser)})
	if err != nil {
		s.log.With("credential", recID, zap.Error(err)).Warn("listing access keys for pruning failed")
		return
	}
	meta := keys.AccessKeyMetadata
	if len(meta) <= maxAccessKeysKept {
		return
	}
	sort.Slice(meta, func(i, j int) bool {
		return aws.ToTime(meta[i].CreateDate).Before(aws.ToTime(meta[j].CreateDate))
	})
	for _, old := range meta[:len(meta)-maxAccessKeysKept] {
		_, err := s.iam.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{
			UserName:    aws.String(iamUser),
			AccessKeyId: old.AccessKeyId,
		})
		if err != nil {
			s.log.With("credential", recID, "accessKeyId", aws.ToString(old.AccessKeyId), zap.Error(err)).
				Warn("deleting old access key failed")
		}
	}
}

// refreshSession re-assumes the record's role and records the fresh
// session's expiry.
func (s *Sweeper) refreshSession(ctx context.Context, rec Record, now time.Time) error {
	duration := rec.DurationSeconds
	if duration == 0 {
		duration = DefaultSessionDuration
	}
	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(rec.RoleARN),
		RoleSessionName: aws.String(fmt.Sprintf("autowar-%s", rec.ID)),
		DurationSeconds: aws.Int32(duration),
	}
	if rec.ExternalID != "" {
		input.ExternalId = aws.String(rec.ExternalID)
	}

	out, err := s.sts.AssumeRole(ctx, input)
	if err != nil {
		return errors.Wrap(err, "assuming role")
	}
	if out.Credentials == nil || out.Credentials.Expiration == nil {
		return errors.New("assume role returned no session expiry")
	}

	expiry := out.Credentials.Expiration.Unix()
	if err := s.store.UpdateSessionExpiry(ctx, rec.ID, expiry, now.Unix()); err != nil {
		return errors.Wrap(err, "recording session refresh")
	}

	s.log.With("credential", rec.ID, "expiry", expiry).Info("refreshed assume-role session")
	return nil
}

// flagAndAlert marks a record for manual attention after a failed rotation
// and publishes an alert when a channel is configured.
func (s *Sweeper) flagAndAlert(ctx context.Context, rec Record, now time.Time, cause error) {
	s.log.With("credential", rec.ID, zap.Error(cause)).Error("credential rotation failed")

	if err := s.store.MarkRotationDue(ctx, rec.ID, now.Unix()); err != nil {
		s.log.With("credential", rec.ID, zap.Error(err)).Error("flagging record for manual rotation failed")
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRotationFailure(ctx, rec.ID, rec.ClientID, cause.Error()); err != nil {
		s.log.With("credential", rec.ID, zap.Error(err)).Error("publishing rotation failure alert failed")
	}
}
