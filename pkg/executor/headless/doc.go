// Package headless implements the headless executor for unattended automation runs.
//
// A run file names a starting URL and a list of goals. The executor opens one
// remote browser session, submits the goals in order through a session.Controller,
// ends the session and writes the resulting timeline as artifacts. It is meant for
// cron jobs and CI pipelines where no terminal is attached.
//
//	┌─────────────────────────────────────────────┐
//	│              Headless Executor              │
//	│  - URL allow/deny constraints               │
//	│  - Step limit and timeout                   │
//	│  - Artifact generation                      │
//	└──────────────────────┬──────────────────────┘
//	                       │
//	                       ▼
//	            ┌──────────────────────┐
//	            │  session.Controller  │
//	            └──────────────────────┘
//
// Example run file:
//
//	name: furniture search
//	starting_url: https://google.com
//	goals:
//	  - Search dining table
//	  - Open the first shopping result
//	constraints:
//	  allowed_urls: ["https://*.google.com/**", "https://google.com**"]
//	  max_steps: 100
//	  timeout: 10m
//	artifacts:
//	  enabled: true
//	  output_dir: ./artifacts
//
// Example usage:
//
//	cfg, _ := headless.LoadConfig("run.yaml")
//	ctrl := session.NewController(webagent.NewClient(baseURL))
//	executor, _ := headless.NewExecutor(ctrl, cfg)
//	summary, err := executor.Run(context.Background())
//
// Safety Constraints:
//
// The constraint manager enforces:
// - Starting URL allowlists/denylists (glob patterns, deny wins)
// - Maximum number of timeline steps across the run
// - Execution timeout
//
// Artifacts:
//
// The artifact writer generates:
// - execution.json: Full run summary including the timeline
// - summary.md: Human-readable markdown summary
// - metrics.json: Goal and step counts
package headless
