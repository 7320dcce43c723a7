package config

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/entrhq/webagent/pkg/webagent"
)

// Environment variables consulted by Resolve.
const (
	EnvBaseURL        = "WEBAGENT_BASE_URL"
	EnvDeepgramAPIKey = "DEEPGRAM_API_KEY"
	EnvOpenAIAPIKey   = "OPENAI_API_KEY"
)

// Overrides are values given on the command line. Zero values are unset.
type Overrides struct {
	BaseURL         string
	Transport       string
	Model           string
	VoiceProvider   string
	VoiceAPIKey     string
	IdleTimeout     time.Duration
	BrowserProvider string
}

// AgentParams is a copy of the agent section.
type AgentParams struct {
	Model           string
	Features        string
	ElementsFilter  string
	BranchingFactor int
	Plan            string
	StorageState    string
	LogFolder       string
}

// AutomationConfig builds a one-shot request for goal at startingURL.
func (p AgentParams) AutomationConfig(startingURL, goal string) webagent.AutomationConfig {
	return webagent.AutomationConfig{
		StartingURL:     startingURL,
		Goal:            goal,
		Plan:            p.Plan,
		Model:           p.Model,
		Features:        p.Features,
		ElementsFilter:  p.ElementsFilter,
		BranchingFactor: p.BranchingFactor,
		AgentType:       webagent.AgentTypePrompt,
		StorageState:    p.StorageState,
		LogFolder:       p.LogFolder,
	}
}

// StepDefaults returns the model settings attached to every step request.
func (p AgentParams) StepDefaults() webagent.StepsRequest {
	return webagent.StepsRequest{
		Plan:            p.Plan,
		Model:           p.Model,
		Features:        p.Features,
		ElementsFilter:  p.ElementsFilter,
		BranchingFactor: p.BranchingFactor,
	}
}

// VoiceParams is a copy of the voice section.
type VoiceParams struct {
	Provider          string
	APIKey            string
	Model             string
	Language          string
	InterimResults    bool
	SmartFormat       bool
	FillerWords       bool
	UtteranceEndMs    int
	SettleDelay       time.Duration
	KeepAliveInterval time.Duration
	RecorderArgs      []string
}

// Settings is the fully resolved configuration of one run.
type Settings struct {
	BaseURL         string
	Transport       webagent.Transport
	RequestTimeout  time.Duration
	Agent           AgentParams
	Voice           VoiceParams
	IdleTimeout     time.Duration
	BrowserProvider string
	HeadlessBrowser bool
}

// NewClient builds a backend client from the resolved settings. Step streams
// have no overall deadline, so RequestTimeout bounds only their response
// headers and the WebSocket handshake.
func (s Settings) NewClient() *webagent.Client {
	return webagent.NewClient(s.BaseURL,
		webagent.WithTransport(s.Transport),
		webagent.WithTimeout(s.RequestTimeout),
		webagent.WithStreamClient(&http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: s.RequestTimeout,
			},
		}),
		webagent.WithDialer(&websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: s.RequestTimeout,
		}),
	)
}

// Resolve merges configuration with precedence:
// CLI overrides > environment variables > config file > defaults.
// Without Initialize the file layer is skipped.
func Resolve(o Overrides) (Settings, error) {
	backend := GetBackend()
	if backend == nil {
		backend = NewBackendSection()
	}
	agent := GetAgent()
	if agent == nil {
		agent = NewAgentSection()
	}
	voice := GetVoice()
	if voice == nil {
		voice = NewVoiceSection()
	}
	session := GetSession()
	if session == nil {
		session = NewSessionSection()
	}

	backend.mu.RLock()
	s := Settings{
		BaseURL:        backend.BaseURL,
		Transport:      backend.StreamTransport,
		RequestTimeout: backend.RequestTimeout,
	}
	backend.mu.RUnlock()

	agent.mu.RLock()
	s.Agent = AgentParams{
		Model:           agent.Model,
		Features:        agent.Features,
		ElementsFilter:  agent.ElementsFilter,
		BranchingFactor: agent.BranchingFactor,
		Plan:            agent.Plan,
		StorageState:    agent.StorageState,
		LogFolder:       agent.LogFolder,
	}
	agent.mu.RUnlock()

	s.Voice = VoiceParams{RecorderArgs: voice.RecorderArgs()}
	voice.mu.RLock()
	s.Voice.Provider = voice.Provider
	s.Voice.APIKey = voice.APIKey
	s.Voice.Model = voice.Model
	s.Voice.Language = voice.Language
	s.Voice.InterimResults = voice.InterimResults
	s.Voice.SmartFormat = voice.SmartFormat
	s.Voice.FillerWords = voice.FillerWords
	s.Voice.UtteranceEndMs = voice.UtteranceEndMs
	s.Voice.SettleDelay = voice.SettleDelay
	s.Voice.KeepAliveInterval = voice.KeepAliveInterval
	voice.mu.RUnlock()

	session.mu.RLock()
	s.IdleTimeout = session.IdleTimeout
	s.BrowserProvider = session.BrowserProvider
	s.HeadlessBrowser = session.HeadlessBrowser
	session.mu.RUnlock()

	// Environment
	if v := os.Getenv(EnvBaseURL); v != "" {
		s.BaseURL = v
	}

	// CLI
	if o.BaseURL != "" {
		s.BaseURL = o.BaseURL
	}
	if o.Transport != "" {
		s.Transport = webagent.Transport(o.Transport)
	}
	if o.Model != "" {
		s.Agent.Model = o.Model
	}
	if o.VoiceProvider != "" {
		s.Voice.Provider = o.VoiceProvider
	}
	if o.IdleTimeout > 0 {
		s.IdleTimeout = o.IdleTimeout
	}
	if o.BrowserProvider != "" {
		s.BrowserProvider = o.BrowserProvider
	}

	// The key variable depends on the provider, so it is resolved last.
	envKey := EnvDeepgramAPIKey
	if s.Voice.Provider == VoiceProviderWhisper {
		envKey = EnvOpenAIAPIKey
	}
	switch {
	case o.VoiceAPIKey != "":
		s.Voice.APIKey = o.VoiceAPIKey
	case os.Getenv(envKey) != "":
		s.Voice.APIKey = os.Getenv(envKey)
	}

	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.Transport != webagent.TransportSSE && s.Transport != webagent.TransportWebSocket {
		return fmt.Errorf("unknown stream transport %q", s.Transport)
	}
	if !oneOf(s.Voice.Provider, VoiceProviderDeepgram, VoiceProviderWhisper) {
		return fmt.Errorf("unknown voice provider %q", s.Voice.Provider)
	}
	if !oneOf(s.BrowserProvider, BrowserProviderRemote, BrowserProviderLocal) {
		return fmt.Errorf("unknown browser provider %q", s.BrowserProvider)
	}
	return nil
}
