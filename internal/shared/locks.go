package shared

import "fmt"

// ChainLockKey builds the redis key serialising journal appends for a company.
func ChainLockKey(companyID int64) string {
	return fmt.Sprintf("ledger:company:%d:chain:lock", companyID)
}

// ThresholdCacheKey builds the redis key caching a company's edge-case thresholds.
func ThresholdCacheKey(companyID int64) string {
	return fmt.Sprintf("ledger:company:%d:thresholds:v1", companyID)
}
