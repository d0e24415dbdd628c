// Package memory implements the assistant's durable memory subsystem: the
// deduplicated two-view fact ledger (permanent archive + compactable active
// store), the flat vector index for semantic search, the reminiscence
// retrieval engine, the LLM-assisted consolidation engine, and the reflective
// session synthesis engine that maintains the diary and persona narrative.
package memory
