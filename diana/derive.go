//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package diana

import (
	"github.com/xsn1210/opensse-schemes/crypto"
)

// MaxIndexWidth bounds the index width to one block hash output.
const MaxIndexWidth = 64

// deriveTokenMask derives the update token and the index mask from a
// search token leaf by hashing its two halves separately. The client
// derives updates the same way, so the widths must agree exactly.
func deriveTokenMask(leaf crypto.SearchTokenKey, width int) (
	crypto.UpdateToken, []byte) {

	var ut crypto.UpdateToken

	sum := crypto.Sum512(leaf[:crypto.UpdateTokenSize])
	copy(ut[:], sum[:crypto.UpdateTokenSize])

	sum = crypto.Sum512(leaf[crypto.UpdateTokenSize:])
	mask := make([]byte, width)
	copy(mask, sum[:width])

	return ut, mask
}
