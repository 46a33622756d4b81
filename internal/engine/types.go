package engine

// SideStats summarizes one side's current index snapshot, the payload for
// GET /api/index/stats.
type SideStats struct {
	FileCount  int   `json:"file_count"`
	TotalBytes int64 `json:"total_bytes"`
}

// Stats bundles both sides' SideStats.
type Stats struct {
	Local SideStats `json:"local"`
	Lake  SideStats `json:"lake"`
}

// ConfigView is the subset of Config exposed at GET /api/index/config: the
// policy bits a client needs to decide what actions are even offerable,
// without leaking filesystem paths or tuning knobs.
type ConfigView struct {
	LocalAllowDelete bool `json:"local_allow_delete"`
	LakeAllowDelete  bool `json:"lake_allow_delete"`
	QueueConcurrency int  `json:"queue_concurrency"`
	HashWorkers      int  `json:"hash_workers"`
}
