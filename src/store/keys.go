package store

import "fmt"

// -----------------------------------------------------------------------------
// Key layout of the shared store. Everything mutable lives under these
// prefixes; there are no cross-key transactions (see interfaces.IStore).
//
//   tick:latest:<instrument>                      latest tick, TTL'd
//   tick:history:<source>:<instrument>            capped history, TTL'd
//   agent:node:<node_id>                          agent record
//   agent:account:<account_id>                    account -> current node_id
//   pos:open:<ticket>                             open position
//   pos:closed:<ticket>                           closed position, TTL'd
//   stats:<scope>:<counter>                       win/loss counters
//   confirm:seen:<ticket>:<result>:<close_time>   close dedup marker, TTL'd
// -----------------------------------------------------------------------------

const (
	PrefixTickLatest  = "tick:latest:"
	PrefixTickHistory = "tick:history:"
	PrefixNode        = "agent:node:"
	PrefixAccount     = "agent:account:"
	PrefixOpenPos     = "pos:open:"
	PrefixClosedPos   = "pos:closed:"
	PrefixStats       = "stats:"
	PrefixConfirmSeen = "confirm:seen:"
)

// -----------------------------------------------------------------------------

func KeyTickLatest(instrument string) string {
	return PrefixTickLatest + instrument
}

func KeyTickHistory(source, instrument string) string {
	return fmt.Sprintf("%s%s:%s", PrefixTickHistory, source, instrument)
}

func KeyNode(nodeID string) string {
	return PrefixNode + nodeID
}

func KeyAccount(accountID string) string {
	return PrefixAccount + accountID
}

func KeyOpenPosition(ticket int64) string {
	return fmt.Sprintf("%s%d", PrefixOpenPos, ticket)
}

func KeyClosedPosition(ticket int64) string {
	return fmt.Sprintf("%s%d", PrefixClosedPos, ticket)
}

func KeyStat(scope, counter string) string {
	return fmt.Sprintf("%s%s:%s", PrefixStats, scope, counter)
}

func KeyConfirmSeen(ticket int64, result string, closeTime int64) string {
	return fmt.Sprintf("%s%d:%s:%d", PrefixConfirmSeen, ticket, result, closeTime)
}
