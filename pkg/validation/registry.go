package validation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds each individual validator run so that one stuck
// cloud API call cannot stall a whole evaluation.
const DefaultCheckTimeout = 30 * time.Second

// Clients holds the AWS service clients the built-in validators depend on.
// Tests inject fakes; commands construct real clients from a shared aws.Config.
type Clients struct {
	IAM        IAMAPI
	S3         S3API
	CloudTrail CloudTrailAPI
	Config     ConfigServiceAPI
	EC2        EC2API
	WAF        WAFAPI
}

// Registry maps a resource-type tag to the ordered list of validators that
// apply to it. It is resolved once at startup and immutable afterwards.
type Registry struct {
	log        *zap.SugaredLogger
	validators map[string][]Validator
	timeout    time.Duration
}

// NewRegistry builds the registry with the built-in validator table.
func NewRegistry(log *zap.SugaredLogger, clients Clients) *Registry {
	return &Registry{
		log: log,
		validators: map[string][]Validator{
			"s3":         {&S3PublicAccessValidator{Client: clients.S3}},
			"iam":        {&IAMPasswordPolicyValidator{Client: clients.IAM}, &RootMFAValidator{Client: clients.IAM}},
			"cloudtrail": {&CloudTrailLoggingValidator{Client: clients.CloudTrail}},
			"config":     {&ConfigRecorderValidator{Client: clients.Config}},
			"vpc":        {&VPCFlowLogsValidator{Client: clients.EC2}},
			"waf":        {&WAFWebACLPresenceValidator{Client: clients.WAF}},
		},
		timeout: DefaultCheckTimeout,
	}
}

// ValidatorsFor returns the validators registered for a target type.
// Unknown types yield an empty list; this is not an error, so that callers
// can submit forward-compatible target types.
func (r *Registry) ValidatorsFor(targetType string) []Validator {
	return r.validators[targetType]
}

type dispatchJob struct {
	validator Validator
	req       Request
}

// RunForEvaluation dispatches each target to its applicable validators and
// aggregates the verdicts.
//
// Verdicts appear in target-list order and, within a target, in the registry
// order for that type. Validators run concurrently, but results are collected
// into a buffer indexed by submission order so the aggregate order stays
// deterministic. A nil or empty target list yields an empty (non-nil) slice.
func (r *Registry) RunForEvaluation(ctx context.Context, targets []ResourceTarget, region, accountID string) []Verdict {
	verdicts := []Verdict{}
	if len(targets) == 0 {
		return verdicts
	}

	var jobs []dispatchJob
	for _, t := range targets {
		for _, v := range r.ValidatorsFor(t.Type) {
			jobs = append(jobs, dispatchJob{
				validator: v,
				req: Request{
					Name:      t.Name,
					Region:    region,
					AccountID: accountID,
					Extra:     t.Extra,
				},
			})
		}
	}
	if len(jobs) == 0 {
		return verdicts
	}

	results := make([]Verdict, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			results[i] = r.runOne(gctx, job.validator, job.req)
			return nil
		})
	}
	// the workers never return errors; failures become ERROR verdicts
	_ = g.Wait()

	return append(verdicts, results...)
}

// runOne executes a single validator with a bounded timeout, converting
// returned errors and panics into ERROR verdicts so a single check can
// never abort the batch.
func (r *Registry) runOne(ctx context.Context, v Validator, req Request) (verdict Verdict) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.With("validator", v.Name(), "panic", rec).Error("validator panicked")
			verdict = errorVerdict(v.Name(), fmt.Errorf("panic: %v", rec))
		}
	}()

	verdict, err := v.Run(ctx, req)
	if err != nil {
		r.log.With("validator", v.Name(), "err", err).Warn("validator could not run")
		return errorVerdict(v.Name(), err)
	}
	return verdict
}
