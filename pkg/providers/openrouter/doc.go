// Package openrouter provides an OpenRouter backend for the OpenAI-style
// client, built on github.com/revrost/go-openrouter.
//
// OpenRouter routes one request format to many upstream vendors, so the
// capabilities of a model depend on where it is routed. Structured output is
// therefore described in the system prompt rather than requested natively.
//
// Extra settings:
//
//	site_url  sent as HTTP-Referer, used for OpenRouter rankings
//	app_name  sent as X-Title
package openrouter
