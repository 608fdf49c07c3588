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


// Package loader fetches and reads sources and normalizes them into records.
//
// # Loaders
//
//   - WebPageLoader: one HTTP GET, boilerplate regions stripped with goquery
//   - SitemapLoader: every <loc> of a sitemap, fetched on an ants pool
//   - DirectoryLoader: every file under a path, each loaded by the loader a Resolver picks
//   - TextLoader, QnALoader: in-memory content tagged with the url "local"
//   - FileLoader: text, markdown, MDX, XML, JSON, CSV and PDF files
//   - TranscriptLoader: YouTube timed-text transcripts
//
// # Failure Policy
//
// A single source that cannot be fetched or read fails with core.ErrLoad.
// Items inside a batch (sitemap pages, directory files) are logged and
// returned in LoadResult.Failures; the batch keeps whatever succeeded.
//
// All web loaders share SharedHTTPClient unless WithHTTPClient is given.
package loader
