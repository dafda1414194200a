package wire

// Envelope keys.
const (
	keyKind    = "y" // message kind tag; "q" for queries, absent otherwise
	keyReply   = "r"
	keyUpdate  = "u"
	keyError   = "e"
	keyValue   = "p" // value-data fragment payload
	keyTID     = "t"
	keyUA      = "v"
	keyNetID   = "n"
	keyClient  = "s"
	keyQuery   = "q"
	keyArgs    = "a"
)

// Query verbs carried in the "q" envelope key.
const (
	queryPing    = "ping"
	queryFind    = "find"
	queryGet     = "get"
	queryPut     = "put"
	queryListen  = "listen"
	queryRefresh = "refresh"
	queryUpdate  = "update"
)

// Argument keys, valid within "a"/"r"/"u"/"e".
const (
	argSocketID  = "sid"
	argID        = "id"
	argInfoHash  = "h"
	argTarget    = "target"
	argQuery     = "q"
	argToken     = "token"
	argValueID   = "vid"
	argNodes4    = "n4"
	argNodes6    = "n6"
	argCreation  = "c"
	argAddress   = "sa"
	argValues    = "values"
	argExpired   = "exp"
	argRefreshed = "re"
	// argFields is the on-wire historical misspelling of "fields" — it must
	// be emitted and accepted verbatim for interoperability with existing
	// deployments.
	argFields  = "fileds"
	argWant    = "w"
	argVersion = "ve"
)

// Sub-keys of the "fileds" argument.
const (
	fieldsNames  = "f"
	fieldsValues = "v"
)

// Sub-keys of one "p" (ValueData) fragment entry.
const (
	fragOffset = "o"
	fragData   = "d"
)
