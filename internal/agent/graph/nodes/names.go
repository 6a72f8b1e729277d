package nodes

// Graph node names.
const (
	NodeLoadConversation = "load_conversation"
	NodeGatherSignals    = "gather_signals"
	NodeScoreLead        = "score_lead"
	NodeTransition       = "phase_transition"
	NodeComposeReply     = "compose_reply"
	NodePersistTurn      = "persist_turn"
	NodeRequestMeeting   = "request_meeting"

	NodeExtractionModel = "extraction_model"
	NodeResponseModel   = "response_model"
)
