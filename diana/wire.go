//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package diana

import (
	"encoding"
	"fmt"

	"github.com/xsn1210/opensse-schemes/crypto"
)

// MarshalSearchRequest encodes the request for transport: AddCount as
// a little-endian uint64 followed by the opaque constrained-PRF
// serialization, whose format is owned by the primitive.
func MarshalSearchRequest(req *SearchRequest) ([]byte, error) {
	buf := make([]byte, 8)
	bo.PutUint64(buf, req.AddCount)

	if req.AddCount == 0 {
		return buf, nil
	}
	m, ok := req.RCPRF.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("constrained PRF is not serializable")
	}
	blob, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(buf, blob...), nil
}

// UnmarshalSearchRequest decodes a transported search request.
func UnmarshalSearchRequest(data []byte) (*SearchRequest, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("truncated search request")
	}
	req := &SearchRequest{
		AddCount: bo.Uint64(data),
	}
	if req.AddCount == 0 {
		return req, nil
	}
	rcprf := new(crypto.RangeRCPRF)
	err := rcprf.UnmarshalBinary(data[8:])
	if err != nil {
		return nil, err
	}
	if rcprf.MaxLeaf()+1 != req.AddCount {
		return nil, fmt.Errorf("search request covers %d leaves, expected %d",
			rcprf.MaxLeaf()+1, req.AddCount)
	}
	req.RCPRF = rcprf
	return req, nil
}

// MarshalUpdateRequest encodes the request for transport: the 16-byte
// update token followed by the masked index bytes.
func MarshalUpdateRequest(req *UpdateRequest) []byte {
	buf := make([]byte, 0, crypto.UpdateTokenSize+len(req.Index))
	buf = append(buf, req.Token[:]...)
	return append(buf, req.Index...)
}

// UnmarshalUpdateRequest decodes a transported update request with
// the index width indexWidth.
func UnmarshalUpdateRequest(data []byte, indexWidth int) (
	*UpdateRequest, error) {

	if len(data) != crypto.UpdateTokenSize+indexWidth {
		return nil, fmt.Errorf("update request is %d bytes, expected %d",
			len(data), crypto.UpdateTokenSize+indexWidth)
	}
	req := &UpdateRequest{
		Index: make([]byte, indexWidth),
	}
	copy(req.Token[:], data)
	copy(req.Index, data[crypto.UpdateTokenSize:])
	return req, nil
}
