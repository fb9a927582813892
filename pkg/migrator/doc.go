// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package migrator replays a Slack workspace export into a Matrix
// homeserver.
//
// A run moves through fixed phases: user accounts are created through the
// Synapse admin API, then rooms for channels and private groups, then
// direct chats. Once every mapping exists it is written to the mapping
// file so that a rerun skips straight to replay. Each room's history is
// then sent as the original authors with the original timestamps, using
// application service masquerading.
//
// # Core Types
//
// [Migrator] drives the phases and owns the shared [IdentityMapper].
//
// [MatrixAPI] is the homeserver surface the migration needs.
// [HomeserverClient] implements it with mautrix, and [DryRunAPI] implements
// it without any network calls.
//
// Per room, a [ReferenceResolver] learns thread edges from the archive, an
// [EventCorrelator] maps Slack messages to the Matrix events they produced,
// a [ContentTransformer] turns a message into a [Payload], and a
// [Sequencer] sends payloads with monotonic transaction IDs. Replies whose
// parent has not been sent yet wait in a [DeferredQueue] for one retry pass.
//
// # Sub-packages
//
//   - slackfmt converts Slack mrkdwn to plain text and Matrix HTML.
//   - matrixfmt builds Matrix reply fallbacks and matrix.to links.
package migrator
