package policy

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/cmsdynamo/dynamo/pkg/inventory"
)

// balancerExprPattern matches the two shapes the original dealer
// configuration's balancer_target_reasons entries take: an optional
// "dataset.name == <pattern> and " prefix, followed by a threshold test on
// the dataset's number of full disk replicas under one common owning
// group. e.g. "dataset.name == /*/*/MINIAOD* and
// replica.num_full_disk_copy_common_owner < 3" or just
// "replica.num_full_disk_copy_common_owner < 2".
var balancerExprPattern = regexp.MustCompile(
	`^(?:dataset\.name == (\S+) and )?replica\.num_full_disk_copy_common_owner < (\d+)$`)

// ParseBalancerRules compiles the configured balancer_target_reasons
// expressions into BalancerRules. Rather than reimplementing the original's
// generic boolean-expression engine (lib/common/interface/classes.py's
// Condition over replica_variables/site_variables), it recognizes the one
// expression shape the shipped configuration actually uses and compiles
// each into a closure; an expression outside that shape is a config error.
func ParseBalancerRules(exprs []string) ([]BalancerRule, error) {
	rules := make([]BalancerRule, 0, len(exprs))
	for _, expr := range exprs {
		rule, err := parseBalancerExpr(expr)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseBalancerExpr(expr string) (BalancerRule, error) {
	m := balancerExprPattern.FindStringSubmatch(expr)
	if m == nil {
		return nil, fmt.Errorf("policy: unrecognized balancer_target_reasons expression %q", expr)
	}
	datasetPattern := m[1]
	threshold, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("policy: bad threshold in balancer_target_reasons expression %q: %w", expr, err)
	}

	reason := BalancerReason(expr)
	return func(d *inventory.Dataset) (BalancerReason, bool) {
		if datasetPattern != "" && !MatchesPattern(datasetPattern, d.Name) {
			return "", false
		}
		if numFullDiskCopyCommonOwner(d) < threshold {
			return reason, true
		}
		return "", false
	}, nil
}

// numFullDiskCopyCommonOwner counts d's dataset replicas that are complete,
// held entirely on disk (not MSS/tape), and owned by a single common group
// across all of their block replicas — the original's
// "replica.num_full_disk_copy_common_owner" variable.
func numFullDiskCopyCommonOwner(d *inventory.Dataset) int {
	var n int
	for _, dr := range d.Replicas() {
		if dr.IsComplete && dr.Group != nil && dr.Site.StorageType == inventory.StorageDisk {
			n++
		}
	}
	return n
}
