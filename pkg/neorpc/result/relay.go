package result

// RelayResult is a result of `sendrawtransaction`, `submitblock` and
// `popblock` RPC calls.
type RelayResult struct {
	Hash uint64 `json:"hash,string"`
}
