package apperr

// Notice is a non-fatal condition surfaced alongside a successful result.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	NoticeOverweight        = "overweight"
	NoticeUnaccountedWeight = "unaccounted_weight"
	NoticeWeightUnknown     = "weight_unknown"
	NoticeTareExceedsGross  = "tare_exceeds_gross"
)
