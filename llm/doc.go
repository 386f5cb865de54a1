// Package llm runs single-turn language model calls for llm nodes.
//
// Providers are chosen by model name through a [Router]:
//
//   - gemini-* models go to [Gemini] (google.golang.org/genai)
//   - gpt-*, o1*, o3*, o4* models go to [OpenAI] (github.com/openai/openai-go)
//
// The API key is passed per call because keys belong to the caller, not
// to the process.
//
//	router := llm.NewRouter(llm.NewGemini(cfg.Gemini), llm.NewOpenAI(cfg.OpenAI))
//	p := router.Route(req.Model)
//	resp, err := p.Generate(ctx, apiKey, req)
package llm
