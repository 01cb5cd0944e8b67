package validation

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/configservice"
	"github.com/pkg/errors"
)

// ConfigServiceAPI is the subset of the AWS Config client used by the
// recorder validator.
type ConfigServiceAPI interface {
	DescribeConfigurationRecorders(ctx context.Context, params *configservice.DescribeConfigurationRecordersInput, optFns ...func(*configservice.Options)) (*configservice.DescribeConfigurationRecordersOutput, error)
	DescribeConfigurationRecorderStatus(ctx context.Context, params *configservice.DescribeConfigurationRecorderStatusInput, optFns ...func(*configservice.Options)) (*configservice.DescribeConfigurationRecorderStatusOutput, error)
}

// ConfigRecorderValidator passes when at least one configuration recorder is
// configured and recording.
type ConfigRecorderValidator struct {
	Client ConfigServiceAPI
}

func (v *ConfigRecorderValidator) Name() string { return "config-recorder" }

func (v *ConfigRecorderValidator) Run(ctx context.Context, req Request) (Verdict, error) {
	recorders, err := v.Client.DescribeConfigurationRecorders(ctx, &configservice.DescribeConfigurationRecordersInput{})
	if err != nil {
		return Verdict{}, errors.Wrap(err, "describing configuration recorders")
	}
	if len(recorders.ConfigurationRecorders) == 0 {
		return Verdict{
			Name:    v.Name(),
			Status:  StatusFail,
			Details: map[string]interface{}{"recorders": 0},
		}, nil
	}

	statuses, err := v.Client.DescribeConfigurationRecorderStatus(ctx, &configservice.DescribeConfigurationRecorderStatusInput{})
	if err != nil {
		return Verdict{}, errors.Wrap(err, "describing recorder status")
	}
	recording := false
	for _, s := range statuses.ConfigurationRecordersStatus {
		if s.Recording {
			recording = true
			break
		}
	}

	status := StatusFail
	if recording {
		status = StatusPass
	}
	return Verdict{
		Name:    v.Name(),
		Status:  status,
		Details: map[string]interface{}{"recording": recording},
	}, nil
}
