package enums

type SwipeOutcome string

const (
	SwipeOutcomeMatchCreated   SwipeOutcome = "match_created"
	SwipeOutcomeAlreadyMatched SwipeOutcome = "already_matched"
	SwipeOutcomeAlreadyLiked   SwipeOutcome = "already_liked"
	SwipeOutcomeLikeRecorded   SwipeOutcome = "like_recorded"
)
