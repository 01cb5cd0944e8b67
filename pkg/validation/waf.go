package validation

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	waftypes "github.com/aws/aws-sdk-go-v2/service/wafv2/types"
	"github.com/pkg/errors"
)

// WAFAPI is the subset of the WAFv2 client used by the web ACL validator.
type WAFAPI interface {
	ListWebACLs(ctx context.Context, params *wafv2.ListWebACLsInput, optFns ...func(*wafv2.Options)) (*wafv2.ListWebACLsOutput, error)
}

// WAFWebACLPresenceValidator passes when at least one web ACL exists in
// either the REGIONAL or the CLOUDFRONT (global) scope. The regional scope
// is checked first.
type WAFWebACLPresenceValidator struct {
	Client WAFAPI
}

func (v *WAFWebACLPresenceValidator) Name() string { return "waf-web-acl" }

func (v *WAFWebACLPresenceValidator) Run(ctx context.Context, req Request) (Verdict, error) {
	for _, scope := range []waftypes.Scope{waftypes.ScopeRegional, waftypes.ScopeCloudfront} {
		out, err := v.Client.ListWebACLs(ctx, &wafv2.ListWebACLsInput{Scope: scope})
		if err != nil {
			return Verdict{}, errors.Wrapf(err, "listing web ACLs in scope %s", scope)
		}
		if len(out.WebACLs) > 0 {
			return Verdict{
				Name:   v.Name(),
				Status: StatusPass,
				Details: map[string]interface{}{
					"count": len(out.WebACLs),
					"scope": string(scope),
				},
			}, nil
		}
	}
	return Verdict{
		Name:    v.Name(),
		Status:  StatusFail,
		Details: map[string]interface{}{"web_acls": 0},
	}, nil
}
