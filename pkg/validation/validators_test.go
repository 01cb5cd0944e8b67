package validation

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/aws/aws-sdk-go-v2/service/configservice"
	configtypes "github.com/aws/aws-sdk-go-v2/service/configservice/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	waftypes "github.com/aws/aws-sdk-go-v2/service/wafv2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingPasswordPolicy(ctx context.Context, params *iam.GetAccountPasswordPolicyInput, optFns ...func(*iam.Options)) (*iam.GetAccountPasswordPolicyOutput, error) {
	return nil, errAccessDenied
}

func failingAccountSummary(ctx context.Context, params *iam.GetAccountSummaryInput, optFns ...func(*iam.Options)) (*iam.GetAccountSummaryOutput, error) {
	return nil, errAccessDenied
}

func TestIAMPasswordPolicy(t *testing.T) {
	policy := func(minLength int32, symbols, numbers, upper, lower bool) *fakeIAM {
		return &fakeIAM{
			GetAccountPasswordPolicyFn: func(ctx context.Context, params *iam.GetAccountPasswordPolicyInput, optFns ...func(*iam.Options)) (*iam.GetAccountPasswordPolicyOutput, error) {
				return &iam.GetAccountPasswordPolicyOutput{
					PasswordPolicy: &iamtypes.PasswordPolicy{
						MinimumPasswordLength:      aws.Int32(minLength),
						RequireSymbols:             symbols,
						RequireNumbers:             numbers,
						RequireUppercaseCharacters: upper,
						RequireLowercaseCharacters: lower,
					},
				}, nil
			},
		}
	}

	tests := []struct {
		name   string
		client IAMAPI
		want   Status
	}{
		{"strong policy passes", policy(14, true, true, true, true), StatusPass},
		{"short minimum length fails", policy(12, true, true, true, true), StatusFail},
		{"missing symbols fails", policy(14, false, true, true, true), StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &IAMPasswordPolicyValidator{Client: tt.client}
			verdict, err := v.Run(context.Background(), Request{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, verdict.Status)
		})
	}
}

func TestIAMPasswordPolicy_NoPolicyIsFail(t *testing.T) {
	client := &fakeIAM{
		GetAccountPasswordPolicyFn: func(ctx context.Context, params *iam.GetAccountPasswordPolicyInput, optFns ...func(*iam.Options)) (*iam.GetAccountPasswordPolicyOutput, error) {
			return nil, &iamtypes.NoSuchEntityException{}
		},
	}

	v := &IAMPasswordPolicyValidator{Client: client}
	verdict, err := v.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, StatusFail, verdict.Status)
}

func TestRootMFA(t *testing.T) {
	summary := func(enabled int32) *fakeIAM {
		return &fakeIAM{
			GetAccountSummaryFn: func(ctx context.Context, params *iam.GetAccountSummaryInput, optFns ...func(*iam.Options)) (*iam.GetAccountSummaryOutput, error) {
				return &iam.GetAccountSummaryOutput{
					SummaryMap: map[string]int32{"AccountMFAEnabled": enabled},
				}, nil
			},
		}
	}

	v := &RootMFAValidator{Client: summary(1)}
	verdict, err := v.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, StatusPass, verdict.Status)

	v = &RootMFAValidator{Client: summary(0)}
	verdict, err = v.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, StatusFail, verdict.Status)
}

func TestRootMFA_APIFailureIsError(t *testing.T) {
	v := &RootMFAValidator{Client: &fakeIAM{GetAccountSummaryFn: failingAccountSummary}}
	_, err := v.Run(context.Background(), Request{})
	// the registry turns this into an ERROR verdict, never a FAIL
	require.Error(t, err)
}

func TestS3PublicAccess_NamedBucket(t *testing.T) {
	pab := func(blockAcls, ignoreAcls, blockPolicy, restrict bool) func(ctx context.Context, params *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error) {
		return func(ctx context.Context, params *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error) {
			return &s3.GetPublicAccessBlockOutput{
				PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
					BlockPublicAcls:       aws.Bool(blockAcls),
					IgnorePublicAcls:      aws.Bool(ignoreAcls),
					BlockPublicPolicy:     aws.Bool(blockPolicy),
					RestrictPublicBuckets: aws.Bool(restrict),
				},
			}, nil
		}
	}
	emptyACL := func(ctx context.Context, params *s3.GetBucketAclInput, optFns ...func(*s3.Options)) (*s3.GetBucketAclOutput, error) {
		return &s3.GetBucketAclOutput{}, nil
	}

	t.Run("all blocked and no public grants passes", func(t *testing.T) {
		v := &S3PublicAccessValidator{Client: &fakeS3{
			GetPublicAccessBlockFn: pab(true, true, true, true),
			GetBucketAclFn:         emptyACL,
		}}
		verdict, err := v.Run(context.Background(), Request{Name: "my-bucket"})
		require.NoError(t, err)
		assert.Equal(t, StatusPass, verdict.Status)
		assert.Equal(t, "my-bucket", verdict.Resource)
	})

	t.Run("any block flag false fails", func(t *testing.T) {
		v := &S3PublicAccessValidator{Client: &fakeS3{
			GetPublicAccessBlockFn: pab(true, true, false, true),
			GetBucketAclFn:         emptyACL,
		}}
		verdict, err := v.Run(context.Background(), Request{Name: "my-bucket"})
		require.NoError(t, err)
		assert.Equal(t, StatusFail, verdict.Status)
	})

	t.Run("public group grant fails even when blocked", func(t *testing.T) {
		v := &S3PublicAccessValidator{Client: &fakeS3{
			GetPublicAccessBlockFn: pab(true, true, true, true),
			GetBucketAclFn: func(ctx context.Context, params *s3.GetBucketAclInput, optFns ...func(*s3.Options)) (*s3.GetBucketAclOutput, error) {
				return &s3.GetBucketAclOutput{
					Grants: []s3types.Grant{
						{Grantee: &s3types.Grantee{URI: aws.String(allUsersGroupURI)}},
					},
				}, nil
			},
		}}
		verdict, err := v.Run(context.Background(), Request{Name: "my-bucket"})
		require.NoError(t, err)
		assert.Equal(t, StatusFail, verdict.Status)
	})
}

func TestS3PublicAccess_AllBuckets(t *testing.T) {
	client := &fakeS3{
		ListBucketsFn: func(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
			return &s3.ListBucketsOutput{
				Buckets: []s3types.Bucket{
					{Name: aws.String("private")},
					{Name: aws.String("public")},
				},
			}, nil
		},
		GetBucketAclFn: func(ctx context.Context, params *s3.GetBucketAclInput, optFns ...func(*s3.Options)) (*s3.GetBucketAclOutput, error) {
			if aws.ToString(params.Bucket) == "public" {
				return &s3.GetBucketAclOutput{
					Grants: []s3types.Grant{
						{Grantee: &s3types.Grantee{URI: aws.String(allUsersGroupURI)}},
					},
				}, nil
			}
			return &s3.GetBucketAclOutput{}, nil
		},
	}

	v := &S3PublicAccessValidator{Client: client}
	verdict, err := v.Run(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, StatusFail, verdict.Status)
	assert.Equal(t, []string{"public"}, verdict.Details["public_buckets"])
}

func TestCloudTrailLogging(t *testing.T) {
	t.Run("zero trails fails", func(t *testing.T) {
		v := &CloudTrailLoggingValidator{Client: &fakeCloudTrail{
			DescribeTrailsFn: func(ctx context.Context, params *cloudtrail.DescribeTrailsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error) {
				return &cloudtrail.DescribeTrailsOutput{}, nil
			},
		}}
		verdict, err := v.Run(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, StatusFail, verdict.Status)
	})

	t.Run("one logging trail passes", func(t *testing.T) {
		v := &CloudTrailLoggingValidator{Client: &fakeCloudTrail{
			DescribeTrailsFn: func(ctx context.Context, params *cloudtrail.DescribeTrailsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error) {
				return &cloudtrail.DescribeTrailsOutput{
					TrailList: []cttypes.Trail{{Name: aws.String("main")}},
				}, nil
			},
			GetTrailStatusFn: func(ctx context.Context, params *cloudtrail.GetTrailStatusInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error) {
				return &cloudtrail.GetTrailStatusOutput{IsLogging: aws.Bool(true)}, nil
			},
		}}
		verdict, err := v.Run(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, StatusPass, verdict.Status)
	})

	t.Run("per-trail status failure is skipped", func(t *testing.T) {
		v := &CloudTrailLoggingValidator{Client: &fakeCloudTrail{
			DescribeTrailsFn: func(ctx context.Context, params *cloudtrail.DescribeTrailsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error) {
				return &cloudtrail.DescribeTrailsOutput{
					TrailList: []cttypes.Trail{
						{Name: aws.String("broken")},
						{Name: aws.String("healthy")},
					},
				}, nil
			},
			GetTrailStatusFn: func(ctx context.Context, params *cloudtrail.GetTrailStatusInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error) {
				if aws.ToString(params.Name) == "broken" {
					return nil, errAccessDenied
				}
				return &cloudtrail.GetTrailStatusOutput{IsLogging: aws.Bool(true)}, nil
			},
		}}
		verdict, err := v.Run(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, StatusPass, verdict.Status)
		assert.Equal(t, "healthy", verdict.Details["trail"])
	})
}

func TestConfigRecorder(t *testing.T) {
	t.Run("zero recorders fails", func(t *testing.T) {
		v := &ConfigRecorderValidator{Client: &fakeConfigService{
			DescribeConfigurationRecordersFn: func(ctx context.Context, params *configservice.DescribeConfigurationRecordersInput, optFns ...func(*configservice.Options)) (*configservice.DescribeConfigurationRecordersOutput, error) {
				return &configservice.DescribeConfigurationRecordersOutput{}, nil
			},
		}}
		verdict, err := v.Run(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, StatusFail, verdict.Status)
	})

	t.Run("recording recorder passes", func(t *testing.T) {
		v := &ConfigRecorderValidator{Client: &fakeConfigService{
			DescribeConfigurationRecordersFn: func(ctx context.Context, params *configservice.DescribeConfigurationRecordersInput, optFns ...func(*configservice.Options)) (*configservice.DescribeConfigurationRecordersOutput, error) {
				return &configservice.DescribeConfigurationRecordersOutput{
					ConfigurationRecorders: []configtypes.ConfigurationRecorder{{Name: aws.String("default")}},
				}, nil
			},
			DescribeConfigurationRecorderStatusFn: func(ctx context.Context, params *configservice.DescribeConfigurationRecorderStatusInput, optFns ...func(*configservice.Options)) (*configservice.DescribeConfigurationRecorderStatusOutput, error) {
				return &configservice.DescribeConfigurationRecorderStatusOutput{
					ConfigurationRecordersStatus: []configtypes.ConfigurationRecorderStatus{{Recording: true}},
				}, nil
			},
		}}
		verdict, err := v.Run(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, StatusPass, verdict.Status)
	})
}

func TestVPCFlowLogs(t *testing.T) {
	t.Run("filters by resource id when named", func(t *testing.T) {
		var gotFilters []ec2types.Filter
		v := &VPCFlowLogsValidator{Client: &fakeEC2{
			DescribeFlowLogsFn: func(ctx context.Context, params *ec2.DescribeFlowLogsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeFlowLogsOutput, error) {
				gotFilters = params.Filter
				return &ec2.DescribeFlowLogsOutput{
					FlowLogs: []ec2types.FlowLog{{FlowLogId: aws.String("fl-1")}},
				}, nil
			},
		}}
		verdict, err := v.Run(context.Background(), Request{Name: "vpc-123"})
		require.NoError(t, err)
		assert.Equal(t, StatusPass, verdict.Status)
		require.Len(t, gotFilters, 1)
		assert.Equal(t, []string{"vpc-123"}, gotFilters[0].Values)
	})

	t.Run("no flow logs fails", func(t *testing.T) {
		v := &VPCFlowLogsValidator{Client: &fakeEC2{
			DescribeFlowLogsFn: func(ctx context.Context, params *ec2.DescribeFlowLogsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeFlowLogsOutput, error) {
				return &ec2.DescribeFlowLogsOutput{}, nil
			},
		}}
		verdict, err := v.Run(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, StatusFail, verdict.Status)
	})
}

func TestWAFWebACLPresence(t *testing.T) {
	t.Run("regional ACL passes without checking cloudfront", func(t *testing.T) {
		var scopes []waftypes.Scope
		v := &WAFWebACLPresenceValidator{Client: &fakeWAF{
			ListWebACLsFn: func(ctx context.Context, params *wafv2.ListWebACLsInput, optFns ...func(*wafv2.Options)) (*wafv2.ListWebACLsOutput, error) {
				scopes = append(scopes, params.Scope)
				return &wafv2.ListWebACLsOutput{
					WebACLs: []waftypes.WebACLSummary{{Name: aws.String("acl")}},
				}, nil
			},
		}}
		verdict, err := v.Run(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, StatusPass, verdict.Status)
		assert.Equal(t, []waftypes.Scope{waftypes.ScopeRegional}, scopes)
	})

	t.Run("falls back to cloudfront scope", func(t *testing.T) {
		v := &WAFWebACLPresenceValidator{Client: &fakeWAF{
			ListWebACLsFn: func(ctx context.Context, params *wafv2.ListWebACLsInput, optFns ...func(*wafv2.Options)) (*wafv2.ListWebACLsOutput, error) {
				if params.Scope == waftypes.ScopeCloudfront {
					return &wafv2.ListWebACLsOutput{
						WebACLs: []waftypes.WebACLSummary{{Name: aws.String("global")}},
					}, nil
				}
				return &wafv2.ListWebACLsOutput{}, nil
			},
		}}
		verdict, err := v.Run(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, StatusPass, verdict.Status)
		assert.Equal(t, "CLOUDFRONT", verdict.Details["scope"])
	})

	t.Run("no ACLs in either scope fails", func(t *testing.T) {
		v := &WAFWebACLPresenceValidator{Client: &fakeWAF{
			ListWebACLsFn: func(ctx context.Context, params *wafv2.ListWebACLsInput, optFns ...func(*wafv2.Options)) (*wafv2.ListWebACLsOutput, error) {
				return &wafv2.ListWebACLsOutput{}, nil
			},
		}}
		verdict, err := v.Run(context.Background(), Request{})
		require.NoError(t, err)
		assert.Equal(t, StatusFail, verdict.Status)
	})
}
