// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package matrixfmt_test

import (
	"fmt"

	"github.com/aiku/slack2matrix/pkg/migrator/matrixfmt"
)

func ExampleReplyFallbackText() {
	fmt.Println(matrixfmt.ReplyFallbackText("@alice:example.org", "first\nsecond"))
	// Output:
	// > <@alice:example.org> first
	// > second
}
