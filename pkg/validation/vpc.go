package validation

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/pkg/errors"
)

// EC2API is the subset of the EC2 client used by the flow logs validator.
type EC2API interface {
	DescribeFlowLogs(ctx context.Context, params *ec2.DescribeFlowLogsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeFlowLogsOutput, error)
}

// VPCFlowLogsValidator passes when flow logs exist for the named resource,
// or for any resource when no name is given.
type VPCFlowLogsValidator struct {
	Client EC2API
}

func (v *VPCFlowLogsValidator) Name() string { return "vpc-flow-logs" }

func (v *VPCFlowLogsValidator) Run(ctx context.Context, req Request) (Verdict, error) {
	input := &ec2.DescribeFlowLogsInput{}
	if req.Name != "" {
		input.Filter = []ec2types.Filter{
			{
				Name:   aws.String("resource-id"),
				Values: []string{req.Name},
			},
		}
	}

	out, err := v.Client.DescribeFlowLogs(ctx, input)
	if err != nil {
		return Verdict{}, errors.Wrap(err, "describing flow logs")
	}

	if len(out.FlowLogs) == 0 {
		return Verdict{
			Name:     v.Name(),
			Resource: req.Name,
			Status:   StatusFail,
			Details:  map[string]interface{}{"flow_logs": 0},
		}, nil
	}
	return Verdict{
		Name:     v.Name(),
		Resource: req.Name,
		Status:   StatusPass,
		Details:  map[string]interface{}{"count": len(out.FlowLogs)},
	}, nil
}
