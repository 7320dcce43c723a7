package types

// Session is the remote browser session the timeline belongs to.
// An empty SessionID means there is no session.
type Session struct {
	SessionID      string `json:"session_id,omitempty"`
	StartingURL    string `json:"starting_url,omitempty"`
	LiveBrowserURL string `json:"live_browser_url,omitempty"`
	Started        bool   `json:"started"`
}

// Example is a canned command offered before a session is started.
type Example struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// DefaultExamples are offered on the playground start screen.
var DefaultExamples = []Example{
	{Title: "Search dining table", URL: "https://google.com"},
}
