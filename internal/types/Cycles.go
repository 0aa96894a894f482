/*

A CycleSnapshot records what one automated fee/range management cycle observed and changed.

*/

package types

import "time"

type CycleSnapshot struct {
	SnapshotID     int64             `json:"snapshot_id,omitempty"`
	CycleNumber    int               `json:"cycle_number"`
	Timestamp      time.Time         `json:"timestamp"`
	PoolsEvaluated int               `json:"pools_evaluated"`
	FeeUpdates     []PoolFeeUpdated  `json:"fee_updates"`
	Rebalances     []RebalanceAction `json:"rebalances"`
	Errors         []string          `json:"errors"`
	DurationMillis int64             `json:"duration_millis"`
}
