package subledger

import "github.com/xraph/subledger/id"

// ID is the TypeID identifier of subscription records and payments.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
