package validation

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	"github.com/pkg/errors"
)

// CloudTrailAPI is the subset of the CloudTrail client used by the logging
// validator.
type CloudTrailAPI interface {
	DescribeTrails(ctx context.Context, params *cloudtrail.DescribeTrailsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.DescribeTrailsOutput, error)
	GetTrailStatus(ctx context.Context, params *cloudtrail.GetTrailStatusInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.GetTrailStatusOutput, error)
}

// CloudTrailLoggingValidator passes when at least one trail exists and is
// actively logging. A status fetch failing for one trail is skipped rather
// than failing the whole check.
type CloudTrailLoggingValidator struct {
	Client CloudTrailAPI
}

func (v *CloudTrailLoggingValidator) Name() string { return "cloudtrail-logging" }

func (v *CloudTrailLoggingValidator) Run(ctx context.Context, req Request) (Verdict, error) {
	out, err := v.Client.DescribeTrails(ctx, &cloudtrail.DescribeTrailsInput{})
	if err != nil {
		return Verdict{}, errors.Wrap(err, "describing trails")
	}
	if len(out.TrailList) == 0 {
		return Verdict{
			Name:    v.Name(),
			Status:  StatusFail,
			Details: map[string]interface{}{"trails": 0},
		}, nil
	}

	for _, t := range out.TrailList {
		status, err := v.Client.GetTrailStatus(ctx, &cloudtrail.GetTrailStatusInput{Name: t.Name})
		if err != nil {
			// one trail's status being unavailable must not abort the check
			continue
		}
		if aws.ToBool(status.IsLogging) {
			return Verdict{
				Name:   v.Name(),
				Status: StatusPass,
				Details: map[string]interface{}{
					"logging": true,
					"trail":   aws.ToString(t.Name),
				},
			}, nil
		}
	}
	return Verdict{
		Name:    v.Name(),
		Status:  StatusFail,
		Details: map[string]interface{}{"logging": false},
	}, nil
}
