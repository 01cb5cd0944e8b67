package validation

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// Well-known ACL grantee groups that make a bucket world-readable.
const (
	allUsersGroupURI           = "http://acs.amazonaws.com/groups/global/AllUsers"
	authenticatedUsersGroupURI = "http://acs.amazonaws.com/groups/global/AuthenticatedUsers"
)

// S3API is the subset of the S3 client used by the public access validator.
type S3API interface {
	GetPublicAccessBlock(ctx context.Context, params *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error)
	GetBucketAcl(ctx context.Context, params *s3.GetBucketAclInput, optFns ...func(*s3.Options)) (*s3.GetBucketAclOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

// S3PublicAccessValidator checks that a bucket blocks public access on all
// four public-access-block dimensions and grants nothing to the well-known
// public groups. With no bucket name it enumerates every bucket in the
// account and fails if any carries an AllUsers grant.
type S3PublicAccessValidator struct {
	Client S3API
}

func (v *S3PublicAccessValidator) Name() string { return "s3-public-access" }

func (v *S3PublicAccessValidator) Run(ctx context.Context, req Request) (Verdict, error) {
	if req.Name != "" {
		return v.checkBucket(ctx, req.Name)
	}
	return v.checkAllBuckets(ctx)
}

func (v *S3PublicAccessValidator) checkBucket(ctx context.Context, bucket string) (Verdict, error) {
	pab, err := v.Client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(bucket)})
	if err != nil {
		return Verdict{}, errors.Wrapf(err, "getting public access block for %s", bucket)
	}
	cfg := pab.PublicAccessBlockConfiguration
	blocked := cfg != nil &&
		aws.ToBool(cfg.BlockPublicAcls) &&
		aws.ToBool(cfg.IgnorePublicAcls) &&
		aws.ToBool(cfg.BlockPublicPolicy) &&
		aws.ToBool(cfg.RestrictPublicBuckets)

	acl, err := v.Client.GetBucketAcl(ctx, &s3.GetBucketAclInput{Bucket: aws.String(bucket)})
	if err != nil {
		return Verdict{}, errors.Wrapf(err, "getting ACL for %s", bucket)
	}
	publicACL := false
	for _, g := range acl.Grants {
		if g.Grantee == nil || g.Grantee.URI == nil {
			continue
		}
		if *g.Grantee.URI == allUsersGroupURI || *g.Grantee.URI == authenticatedUsersGroupURI {
			publicACL = true
			break
		}
	}

	if blocked && !publicACL {
		return Verdict{
			Name:     v.Name(),
			Resource: bucket,
			Status:   StatusPass,
			Details:  map[string]interface{}{"public_block": true},
		}, nil
	}
	return Verdict{
		Name:     v.Name(),
		Resource: bucket,
		Status:   StatusFail,
		Details: map[string]interface{}{
			"public_block": blocked,
			"public_acl":   publicACL,
		},
	}, nil
}

func (v *S3PublicAccessValidator) checkAllBuckets(ctx context.Context) (Verdict, error) {
	out, err := v.Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return Verdict{}, errors.Wrap(err, "listing buckets")
	}

	var public []string
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)
		acl, err := v.Client.GetBucketAcl(ctx, &s3.GetBucketAclInput{Bucket: b.Name})
		if err != nil {
			return Verdict{}, errors.Wrapf(err, "getting ACL for %s", name)
		}
		for _, g := range acl.Grants {
			if g.Grantee != nil && g.Grantee.URI != nil && *g.Grantee.URI == allUsersGroupURI {
				public = append(public, name)
				break
			}
		}
	}

	if len(public) > 0 {
		return Verdict{
			Name:    v.Name(),
			Status:  StatusFail,
			Details: map[string]interface{}{"public_buckets": public},
		}, nil
	}
	return Verdict{
		Name:    v.Name(),
		Status:  StatusPass,
		Details: map[string]interface{}{"public_buckets": 0},
	}, nil
}
