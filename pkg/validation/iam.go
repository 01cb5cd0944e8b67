package validation

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/pkg/errors"
)

// IAMAPI is the subset of the IAM client used by the account-level validators.
type IAMAPI interface {
	GetAccountPasswordPolicy(ctx context.Context, params *iam.GetAccountPasswordPolicyInput, optFns ...func(*iam.Options)) (*iam.GetAccountPasswordPolicyOutput, error)
	GetAccountSummary(ctx context.Context, params *iam.GetAccountSummaryInput, optFns ...func(*iam.Options)) (*iam.GetAccountSummaryOutput, error)
}

// IAMPasswordPolicyValidator checks the account password policy against the
// baseline: minimum length 14 and symbols, numbers, uppercase and lowercase
// all required.
type IAMPasswordPolicyValidator struct {
	Client IAMAPI
}

func (v *IAMPasswordPolicyValidator) Name() string { return "iam-password-policy" }

func (v *IAMPasswordPolicyValidator) Run(ctx context.Context, req Request) (Verdict, error) {
	out, err := v.Client.GetAccountPasswordPolicy(ctx, &iam.GetAccountPasswordPolicyInput{})
	if err != nil {
		// no policy configured at all is a compliance failure, not an
		// inability to run the check
		var notFound *types.NoSuchEntityException
		if errors.As(err, &notFound) {
			return Verdict{
				Name:    v.Name(),
				Status:  StatusFail,
				Details: map[string]interface{}{"policy": nil},
			}, nil
		}
		return Verdict{}, errors.Wrap(err, "getting account password policy")
	}

	p := out.PasswordPolicy
	minLength := 0
	if p.MinimumPasswordLength != nil {
		minLength = int(*p.MinimumPasswordLength)
	}
	good := minLength >= 14 &&
		p.RequireSymbols &&
		p.RequireNumbers &&
		p.RequireUppercaseCharacters &&
		p.RequireLowercaseCharacters

	status := StatusFail
	if good {
		status = StatusPass
	}
	return Verdict{
		Name:   v.Name(),
		Status: status,
		Details: map[string]interface{}{
			"minimum_length":    minLength,
			"require_symbols":   p.RequireSymbols,
			"require_numbers":   p.RequireNumbers,
			"require_uppercase": p.RequireUppercaseCharacters,
			"require_lowercase": p.RequireLowercaseCharacters,
		},
	}, nil
}

// RootMFAValidator checks the account summary flag indicating whether the
// root user has an MFA device enabled.
type RootMFAValidator struct {
	Client IAMAPI
}

func (v *RootMFAValidator) Name() string { return "iam-root-mfa" }

func (v *RootMFAValidator) Run(ctx context.Context, req Request) (Verdict, error) {
	out, err := v.Client.GetAccountSummary(ctx, &iam.GetAccountSummaryInput{})
	if err != nil {
		return Verdict{}, errors.Wrap(err, "getting account summary")
	}

	enabled := out.SummaryMap[string(types.SummaryKeyTypeAccountMFAEnabled)] > 0
	status := StatusFail
	if enabled {
		status = StatusPass
	}
	return Verdict{
		Name:    v.Name(),
		Status:  status,
		Details: map[string]interface{}{"account_mfa_enabled": enabled},
	}, nil
}
