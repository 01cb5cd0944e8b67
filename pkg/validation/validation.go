// Package validation contains the best-practice checks that autowar runs
// against cloud accounts, and the registry which maps resource targets to
// the checks that apply to them.
package validation

import (
	"context"
)

// Status is the outcome of a single validator run.
//
// ERROR means the check could not determine compliance (a dependency was
// unreachable or prerequisite data was missing). FAIL means the check ran
// and found non-compliance. The two must never be conflated.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

// ResourceTarget identifies a cloud resource to evaluate. It is supplied by
// the caller as part of an evaluation and is never mutated.
type ResourceTarget struct {
	Type  string                 `json:"type"`
	Name  string                 `json:"name,omitempty"`
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Request carries the contextual inputs for a single validator run.
type Request struct {
	// Name is the target's resource name; its semantics depend on the
	// target type (an S3 bucket name, a VPC resource id, ...). May be empty.
	Name      string
	Region    string
	AccountID string
	Extra     map[string]interface{}
}

// Verdict is the immutable result of running one validator against one target.
type Verdict struct {
	Name     string                 `json:"name"`
	Resource string                 `json:"resource,omitempty"`
	Status   Status                 `json:"status"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// Validator is a single named compliance check.
//
// Run returns an error only when the check itself could not execute; the
// registry converts such errors into ERROR verdicts so that one failing
// validator never aborts the rest of the batch.
type Validator interface {
	Name() string
	Run(ctx context.Context, req Request) (Verdict, error)
}

// errorVerdict builds the ERROR verdict used whenever a check could not
// determine compliance.
func errorVerdict(name string, err error) Verdict {
	return Verdict{
		Name:    name,
		Status:  StatusError,
		Details: map[string]interface{}{"error": err.Error()},
	}
}
