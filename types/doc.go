/*
Package types provides the shared type definitions for flowcore.

types is the lowest-level package in the module. It depends on nothing
internal and gives llm, retry, and flow a common contract for structured
errors and token accounting, avoiding circular dependencies.

Core types:

  - Error / ErrorCode — structured errors with a Retryable flag and cause chain
  - IsRetryable       — the platform's shared transient-error classifier
  - TokenUsage        — prompt/completion token and cost accounting
*/
package types
