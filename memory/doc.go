// Package memory provides the semantic memory core for the Mira companion.
//
// Every conversational turn is persisted as a Record (the user's reflection,
// the assistant's reply, an embedding vector, and a timestamp). Goals are
// stored the same way and retrieved through the same vector machinery.
//
// Architecture:
//   - Store / GoalStore: durable, append-mostly persistence (jsonfile backend)
//   - Embedder: text-to-vector conversion (mock for tests, ONNX for local use)
//   - Index: nearest-neighbor queries over stored vectors (chromem backend)
//   - Ranker: blends cosine similarity with recency decay into a top-K order
//
// The embedding dimension D is fixed process-wide by the Embedder
// configuration; every stored record and goal carries exactly one vector of
// dimension D, and queries with any other dimension fail with DimensionError
// rather than comparing truncated or padded vectors.
//
// Retrieval returning nothing is not an error: an empty store degrades to an
// empty context section. Theme annotation is the only mutation allowed after
// a record is created and is the extension point for future clustering work.
package memory
