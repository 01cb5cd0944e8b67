// Package credentials manages the lifecycle of delegated cloud credentials:
// registration, expiry, rotation and revocation.
package credentials

import (
	"context"
	"time"
)

const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// Kind discriminates how a credential record can be rotated. It is decided
// once when the record is created rather than re-derived from which optional
// fields happen to be populated.
type Kind string

const (
	// KindStaticSecret rotates by issuing new IAM access keys and storing
	// them in the record's secret.
	KindStaticSecret Kind = "STATIC_SECRET"
	// KindAssumableRole rotates by re-assuming the role and refreshing the
	// session expiry.
	KindAssumableRole Kind = "ASSUMABLE_ROLE"
	// KindUnmanaged cannot be rotated automatically and is flagged for
	// manual action.
	KindUnmanaged Kind = "UNMANAGED"
)

// Record is one stored credential. Exactly one of the secret-ARN (static
// key) and role-ARN (assumable role) shapes populates the rotation-relevant
// fields; records carrying neither are unmanaged.
type Record struct {
	ID       string `json:"id" dynamodbav:"id"`
	ClientID string `json:"clientId" dynamodbav:"client_id"`
	// Type is the registration shape: "role" or "keys".
	Type   string `json:"type" dynamodbav:"type"`
	Kind   Kind   `json:"kind,omitempty" dynamodbav:"kind,omitempty"`
	Status string `json:"status" dynamodbav:"status"`

	SecretARN  string `json:"secretArn,omitempty" dynamodbav:"secret_arn,omitempty"`
	RoleARN    string `json:"roleArn,omitempty" dynamodbav:"role_arn,omitempty"`
	ExternalID string `json:"externalId,omitempty" dynamodbav:"external_id,omitempty"`
	// IAMUser owns the access keys of a static-key record.
	IAMUser string `json:"iamUser,omitempty" dynamodbav:"iam_user,omitempty"`
	// CallerIdentity is the ARN observed when the credential was validated.
	CallerIdentity string `json:"callerIdentity,omitempty" dynamodbav:"caller_identity,omitempty"`

	ExpiryTS             int64 `json:"expiryTs,omitempty" dynamodbav:"expiry_ts,omitempty"`
	RotationIntervalDays int   `json:"rotationIntervalDays,omitempty" dynamodbav:"rotation_interval_days,omitempty"`
	LastRotatedTS        int64 `json:"lastRotatedTs,omitempty" dynamodbav:"last_rotated_ts,omitempty"`
	// RotationDue is set (to the flagging time) when rotation failed or is
	// impossible and an operator needs to act.
	RotationDue     int64 `json:"rotationDue,omitempty" dynamodbav:"rotation_due,omitempty"`
	DurationSeconds int32 `json:"durationSeconds,omitempty" dynamodbav:"duration_seconds,omitempty"`

	CreatedAt int64 `json:"createdAt" dynamodbav:"created_at"`
	DeletedAt int64 `json:"deletedAt,omitempty" dynamodbav:"deleted_at,omitempty"`
}

// ResolveKind returns the record's rotation kind, deriving it for records
// created before the discriminant existed. A secret ARN takes priority over
// a role ARN if a record ever carries both.
func (r *Record) ResolveKind() Kind {
	if r.Kind != "" {
		return r.Kind
	}
	switch {
	case r.SecretARN != "":
		return KindStaticSecret
	case r.RoleARN != "":
		return KindAssumableRole
	default:
		return KindUnmanaged
	}
}

// IsExpired reports whether the record's expiry timestamp exists and has
// passed.
func (r *Record) IsExpired(now time.Time) bool {
	return r.ExpiryTS != 0 && r.ExpiryTS <= now.Unix()
}

// NeedsRotation reports whether the record's rotation interval has elapsed
// since it was last rotated. Records without an interval never rotate; an
// interval with no recorded rotation is immediately due.
func (r *Record) NeedsRotation(now time.Time) bool {
	if r.RotationIntervalDays == 0 {
		return false
	}
	if r.LastRotatedTS == 0 {
		return true
	}
	next := r.LastRotatedTS + int64(r.RotationIntervalDays)*24*3600
	return now.Unix() >= next
}

// Storage persists credential records.
type Storage interface {
	Put(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// List returns every stored record. A full scan is acceptable at the
	// expected low-thousands scale; swap in a time-bucketed index before
	// growing past that.
	List(ctx context.Context) ([]Record, error)
	MarkExpired(ctx context.Context, id string, deletedAt int64) error
	// MarkRotated advances last_rotated_ts and clears the rotation-due flag.
	MarkRotated(ctx context.Context, id string, rotatedAt int64) error
	MarkRotationDue(ctx context.Context, id string, ts int64) error
	// UpdateSessionExpiry records a refreshed assume-role session.
	UpdateSessionExpiry(ctx context.Context, id string, expiryTS, rotatedAt int64) error
}
