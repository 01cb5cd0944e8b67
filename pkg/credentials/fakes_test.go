package credentials

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/pkg/errors"
)

// memStore is an in-memory Storage for the sweeper and registrar tests.
type memStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func newMemStore(records ...Record) *memStore {
	s := &memStore{records: map[string]Record{}}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *memStore) Put(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memStore) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Record{}
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

func (s *memStore) MarkExpired(ctx context.Context, id string, deletedAt int64) error {
	return s.update(id, func(r *Record) {
		r.Status = StatusExpired
		r.DeletedAt = deletedAt
	})
}

func (s *memStore) MarkRotated(ctx context.Context, id string, rotatedAt int64) error {
	return s.update(id, func(r *Record) {
		r.LastRotatedTS = rotatedAt
		r.RotationDue = 0
	})
}

func (s *memStore) MarkRotationDue(ctx context.Context, id string, ts int64) error {
	return s.update(id, func(r *Record) {
		r.RotationDue = ts
	})
}

func (s *memStore) UpdateSessionExpiry(ctx context.Context, id string, expiryTS, rotatedAt int64) error {
	return s.update(id, func(r *Record) {
		r.ExpiryTS = expiryTS
		r.LastRotatedTS = rotatedAt
		r.RotationDue = 0
	})
}

func (s *memStore) update(id string, fn func(r *Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return errors.Errorf("record %s not found", id)
	}
	fn(&r)
	s.records[id] = r
	return nil
}

func (s *memStore) get(id string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

type fakeSecrets struct {
	CreateSecretFn   func(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	DescribeSecretFn func(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	GetSecretValueFn func(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValueFn func(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DeleteSecretFn   func(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
}

func (f *fakeSecrets) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	return f.CreateSecretFn(ctx, params, optFns...)
}

func (f *fakeSecrets) DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	return f.DescribeSecretFn(ctx, params, optFns...)
}

func (f *fakeSecrets) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	return f.GetSecretValueFn(ctx, params, optFns...)
}

func (f *fakeSecrets) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	return f.PutSecretValueFn(ctx, params, optFns...)
}

func (f *fakeSecrets) DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error) {
	return f.DeleteSecretFn(ctx, params, optFns...)
}

type fakeIAMKeys struct {
	CreateAccessKeyFn func(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error)
	ListAccessKeysFn  func(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	DeleteAccessKeyFn func(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error)
}

func (f *fakeIAMKeys) CreateAccessKey(ctx context.Context, params *iam.CreateAccessKeyInput, optFns ...func(*iam.Options)) (*iam.CreateAccessKeyOutput, error) {
	return f.CreateAccessKeyFn(ctx, params, optFns...)
}

func (f *fakeIAMKeys) ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error) {
	return f.ListAccessKeysFn(ctx, params, optFns...)
}

func (f *fakeIAMKeys) DeleteAccessKey(ctx context.Context, params *iam.DeleteAccessKeyInput, optFns ...func(*iam.Options)) (*iam.DeleteAccessKeyOutput, error) {
	return f.DeleteAccessKeyFn(ctx, params, optFns...)
}

type fakeSTS struct {
	AssumeRoleFn        func(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
	GetCallerIdentityFn func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func (f *fakeSTS) AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error) {
	return f.AssumeRoleFn(ctx, params, optFns...)
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	return f.GetCallerIdentityFn(ctx, params, optFns...)
}

type recordedAlert struct {
	id, clientID, reason string
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []recordedAlert
}

func (f *fakeNotifier) NotifyRotationFailure(ctx context.Context, id, clientID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, recordedAlert{id: id, clientID: clientID, reason: reason})
	return nil
}
