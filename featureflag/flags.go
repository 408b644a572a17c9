package featureflag

type Flag string

const (
	// Searches requested over the visibility service ignore section
	// visibility and only test distance and frustum.
	FlagDisableOcclusionCulling Flag = "DISABLE_OCCLUSION_CULLING"

	// Search responses are sent without a receipt.
	FlagDisableSearchReceipts Flag = "DISABLE_SEARCH_RECEIPTS"

	// Decoding search results does not record the frame sections were last
	// visible in.
	FlagDisableFrameStamping Flag = "DISABLE_FRAME_STAMPING"
)
