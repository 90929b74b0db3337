//
// Copyright (c) 2024 Markku Rossi
//
// All rights reserved.
//

package janus

import (
	"errors"

	"go.uber.org/zap"

	"github.com/xsn1210/opensse-schemes/crypto"
	"github.com/xsn1210/opensse-schemes/diana"
	"github.com/xsn1210/opensse-schemes/edb"
)

// Server implements the JANUS search server: two independent DIANA
// instances, one holding puncturable ciphertexts for insertions and
// one holding puncture key shares for deletions. A deletion punctures
// the key share that would decrypt the corresponding insertion
// ciphertext, so deleted entries drop out cryptographically without
// the deletion index ever touching the insertion database.
type Server struct {
	insertion    *diana.Server[crypto.Ciphertext]
	deletion     *diana.Server[crypto.KeyShare]
	newDecrypter crypto.PunctDecrypterFactory
	logger       *zap.Logger
}

// NewServer creates a new server over the two encrypted databases.
// The factory builds the puncturable decrypter of a search from the
// request's initial key share.
func NewServer(insertion, deletion edb.EDB,
	factory crypto.PunctDecrypterFactory, logger *zap.Logger) (
	*Server, error) {

	if factory == nil {
		return nil, errors.New("puncturable decrypter factory required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ins, err := diana.NewServer[crypto.Ciphertext](insertion,
		CiphertextCodec{}, logger.Named("insertion"))
	if err != nil {
		return nil, err
	}
	del, err := diana.NewServer[crypto.KeyShare](deletion,
		KeyShareCodec{}, logger.Named("deletion"))
	if err != nil {
		return nil, err
	}
	return &Server{
		insertion:    ins,
		deletion:     del,
		newDecrypter: factory,
		logger:       logger,
	}, nil
}

// Insert stores the insertion request in the insertion index.
func (s *Server) Insert(req InsertionRequest) error {
	return s.insertion.Insert(req)
}

// Delete stores the deletion request in the deletion index.
func (s *Server) Delete(req DeletionRequest) error {
	return s.deletion.Insert(req)
}

// FlushEDB flushes both encrypted databases.
func (s *Server) FlushEDB() error {
	err := s.insertion.FlushEDB()
	if err != nil {
		return err
	}
	return s.deletion.FlushEDB()
}

// decrypt reconstructs the punctured key from the first key share and
// the collected shares, then decrypts the ciphertexts. Punctured
// ciphertexts are deleted entries and are dropped silently.
func (s *Server) decrypt(req *SearchRequest, cts []crypto.Ciphertext,
	shares []crypto.KeyShare) ([]uint64, error) {

	decrypter, err := s.newDecrypter(req.FirstKeyShare)
	if err != nil {
		return nil, err
	}
	for _, share := range shares {
		err = decrypter.CombineKeyShare(share)
		if err != nil {
			return nil, err
		}
	}

	var results []uint64
	for _, ct := range cts {
		index, err := decrypter.Decrypt(ct)
		if err != nil {
			if errors.Is(err, crypto.ErrPunctured) {
				continue
			}
			return nil, err
		}
		results = append(results, index)
	}
	return results, nil
}

func (s *Server) checkCounts(req *SearchRequest) {
	if req.Insertion.AddCount < req.Deletion.AddCount {
		s.logger.Warn("keyword deleted more often than inserted",
			zap.String("keyword_token",
				crypto.HexString(req.KeywordToken[:])),
			zap.Uint64("insertions", req.Insertion.AddCount),
			zap.Uint64("deletions", req.Deletion.AddCount))
	}
}

// Search searches the request and returns the indices that were
// inserted and never deleted.
func (s *Server) Search(req *SearchRequest) ([]uint64, error) {
	s.checkCounts(req)

	cts, err := s.insertion.Search(&req.Insertion, false)
	if err != nil {
		return nil, err
	}
	shares, err := s.deletion.Search(&req.Deletion, false)
	if err != nil {
		return nil, err
	}
	return s.decrypt(req, cts, shares)
}

// SearchParallel searches the request with threadsCount workers per
// underlying DIANA search.
func (s *Server) SearchParallel(req *SearchRequest, threadsCount int) (
	[]uint64, error) {

	s.checkCounts(req)

	cts, err := s.insertion.SearchParallel(&req.Insertion, threadsCount,
		false)
	if err != nil {
		return nil, err
	}
	shares, err := s.deletion.SearchParallel(&req.Deletion, threadsCount,
		false)
	if err != nil {
		return nil, err
	}
	return s.decrypt(req, cts, shares)
}
