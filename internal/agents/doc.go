// Package agents implements the model-backed review capabilities: the
// specialists, the automated challenger, the arbitrator and the synthesizer.
//
// Each capability renders a persona prompt, sends it through a Completer and
// parses the JSON the model returns. Two Completers are provided, one for the
// Anthropic Messages API and one for OpenAI-compatible chat completions. Both
// stream, so long specialist runs can report partial text to the caller.
//
// Persona prompts ship embedded in personas.toml and can be overridden from a
// file on disk:
//
//	personas, err := agents.LoadPersonas("/etc/reviewd/personas.toml")
//	completer, err := agents.NewCompleter(cfg.Agents)
//	panel := agents.NewPanel(completer, personas, cfg.Agents.MaxTokens, logger)
//
// Client errors that retrying cannot fix (bad key, unknown model, invalid
// request) wrap workflows.ErrPermanent. Malformed model output is a plain
// error so the activity retry policy gets another attempt.
package agents
