package webagent

// Agent type sent with every automation request.
const AgentTypePrompt = "PromptAgent"

// Elements filters understood by the automation backend.
const (
	ElementsFilterSOM        = "som"
	ElementsFilterVisibility = "visibility"
	ElementsFilterNone       = "none"
)

// AutomationConfig is the body of a one-shot POST /automate.
type AutomationConfig struct {
	StartingURL     string `json:"starting_url"`
	Goal            string `json:"goal"`
	Plan            string `json:"plan"`
	Model           string `json:"model"`
	Features        string `json:"features"`
	ElementsFilter  string `json:"elements_filter"`
	BranchingFactor int    `json:"branching_factor"`
	AgentType       string `json:"agent_type"`
	StorageState    string `json:"storage_state"`
	LogFolder       string `json:"log_folder"`
}

// AutomationResponse is the reply to POST /automate.
type AutomationResponse struct {
	Message string `json:"message"`
}

// BrowserSession is the reply to POST /start-browser-session.
type BrowserSession struct {
	LiveBrowserURL string `json:"live_browser_url"`
	SessionID      string `json:"session_id"`
}

// StepsRequest is the body of the initial-steps and additional-steps calls.
// Model settings are optional and omitted when empty.
type StepsRequest struct {
	Goal            string `json:"goal"`
	StartingURL     string `json:"starting_url"`
	Plan            string `json:"plan"`
	SessionID       string `json:"session_id"`
	Model           string `json:"model,omitempty"`
	Features        string `json:"features,omitempty"`
	ElementsFilter  string `json:"elements_filter,omitempty"`
	BranchingFactor int    `json:"branching_factor,omitempty"`
}

type endSessionRequest struct {
	SessionID string `json:"session_id"`
}
