// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package openai implements ai.Embedder on top of OpenAI-compatible
// embedding APIs.
//
// The langchaingo OpenAI client talks to api.openai.com as well as to
// compatible local servers (Ollama's /v1 endpoint, LocalAI, vLLM).
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithModel("nomic-embed-text"),
//	)
//	embedder, err := openai.NewEmbedder(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vector, err := embedder.EmbedText(ctx, "sample text")
//
// # Error Handling
//
// Transport failures are retried with exponential backoff. Once retries are
// exhausted the error wraps core.ErrEmbedding. A response whose vectors do
// not match the declared dimension also fails with core.ErrEmbedding, and
// vectors are never padded or truncated.
package openai
