/*
Package llm defines the boundary contract to the language-model collaborator.

The engine never couples to a vendor API. It sees only Provider (synchronous
"text in, text plus usage out") and optionally StreamingProvider for
incremental token delivery. Concrete providers live outside this module and
are injected into the engine.
*/
package llm
