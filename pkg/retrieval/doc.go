// Package retrieval implements hybrid search over the knowledge base.
//
// A query is embedded and sent to two independent channels: a vector
// channel that returns chunks above a cosine similarity floor, and a
// keyword channel that returns chunks containing the query text. Both
// channels over-fetch, run concurrently and fail open. Their outputs are
// fused by a rank-preserving union, optionally reranked and truncated to
// the requested size.
//
// Basic usage:
//
//	r, err := retrieval.New(store, embedder, retrieval.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	resp, err := r.Retrieve(ctx, retrieval.Query{Text: "2-Takt-Motoröl", MaxResults: 5})
package retrieval
