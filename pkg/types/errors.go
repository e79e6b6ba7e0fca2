// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "github.com/rotisserie/eris"

// Error taxonomy. Stages wrap these with eris and callers test with errors.Is.
// ErrValidation on the canonical store, ErrNotFound, and ErrConfiguration are
// fatal; the others are absorbed per event, item, batch, or source.
var (
	ErrValidation      = eris.New("validation failed")
	ErrExtractionParse = eris.New("extraction response not parseable")
	ErrNominationParse = eris.New("nomination response not parseable")
	ErrExternalSignal  = eris.New("external signal unavailable")
	ErrNotFound        = eris.New("not found")
	ErrConfiguration   = eris.New("configuration missing")
)
