package tally

import "github.com/xraph/tally/id"

// ID is the primary identifier type for all tally records.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
