//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package diana

import (
	"github.com/xsn1210/opensse-schemes/crypto"
)

// SearchRequest asks the server to enumerate the AddCount leaves of
// the constrained PRF and emit the matching indices. AddCount is the
// exact number of expected matches: RCPRF.MaxLeaf()+1 == AddCount.
type SearchRequest struct {
	AddCount uint64
	RCPRF    crypto.ConstrainedRCPRF
}

// UpdateRequest stores a masked index under an update token. The
// server stores the pair verbatim; Index has the index width of the
// server's codec.
type UpdateRequest struct {
	Token crypto.UpdateToken
	Index []byte
}
